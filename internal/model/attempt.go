package model

// Attempt is one authorized play-through of a test, created by the server
// before any question is shown.
type Attempt struct {
	AttemptID        string `json:"attemptId"`
	TestID           ID     `json:"test_id"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
}

// Valid reports whether the attempt carries a server-issued identifier.
func (a *Attempt) Valid() bool {
	return a != nil && a.AttemptID != ""
}
