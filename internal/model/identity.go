package model

type Identity struct {
	ID       ID
	Username string
	Email    string
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
