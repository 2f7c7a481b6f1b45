package model

// Option is the value token submitted for a chosen answer slot.
type Option string

const (
	Option1 Option = "option1"
	Option2 Option = "option2"
	Option3 Option = "option3"
	Option4 Option = "option4"
)

// Options lists the answer tokens in slot order.
var Options = [4]Option{Option1, Option2, Option3, Option4}

// Valid reports whether o is one of the four fixed tokens.
func (o Option) Valid() bool {
	for _, v := range Options {
		if o == v {
			return true
		}
	}
	return false
}

// Letter is the display letter of the slot, "A" through "D".
func (o Option) Letter() string {
	for i, v := range Options {
		if o == v {
			return string(rune('A' + i))
		}
	}
	return "?"
}

type Question struct {
	ID      ID     `json:"id"`
	Text    string `json:"text"`
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`
	Option4 string `json:"option4"`
}

// Choice pairs an option token with the text shown for it.
type Choice struct {
	Option Option
	Text   string
}

// Choices returns the four options of q in slot order.
func (q Question) Choices() []Choice {
	return []Choice{
		{Option: Option1, Text: q.Option1},
		{Option: Option2, Text: q.Option2},
		{Option: Option3, Text: q.Option3},
		{Option: Option4, Text: q.Option4},
	}
}
