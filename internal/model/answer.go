package model

type Answer struct {
	QuestionID ID     `json:"question_id"`
	Answer     Option `json:"answer"`
}

type SubmissionResult struct {
	IQScore float64 `json:"iq_score"`
}
