package dto

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type StartAttemptRequest struct {
	TestID string `json:"test_id"`
}

// AnswerDTO is one selected option within a submission.
type AnswerDTO struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// SubmitRequest identifies the attempt by the id returned from the start call.
type SubmitRequest struct {
	AttemptID string      `json:"attemptId"`
	Answers   []AnswerDTO `json:"answers"`
}
