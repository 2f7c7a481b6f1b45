package dto

import "time"

// TestDTO is a test as listed by the API.
type TestDTO struct {
	ID               FlexID `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
}

// QuestionDTO never carries the correct answer.
type QuestionDTO struct {
	ID      FlexID `json:"id"`
	Text    string `json:"text"`
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`
	Option4 string `json:"option4"`
}

// HistoryEntryDTO is one completed attempt. Depending on the backend the
// timestamp arrives as created_at or submittedAt.
type HistoryEntryDTO struct {
	ID          FlexID     `json:"id"`
	Score       *float64   `json:"score"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	Test        TestDTO    `json:"test"`
}
