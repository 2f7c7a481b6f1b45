package model

// ID identifies a server-side resource. The API emits ids as JSON numbers or
// strings depending on the backend; the client always carries them as text.
type ID string

func (id ID) String() string { return string(id) }

type Test struct {
	ID               ID     `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
}
