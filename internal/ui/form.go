package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type field struct {
	label     string
	secret    bool
	charLimit int
}

// form is a vertical list of text inputs with one focused at a time.
type form struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

func newForm(fields ...field) form {
	f := form{}
	for i, fd := range fields {
		in := textinput.New()
		in.Prompt = "> "
		in.CharLimit = fd.charLimit
		if fd.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		if i == 0 {
			in.Focus()
		}
		f.labels = append(f.labels, fd.label)
		f.inputs = append(f.inputs, in)
	}
	return f
}

func (f form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

// rawValue keeps surrounding spaces; passwords are sent as typed.
func (f form) rawValue(i int) string {
	return f.inputs[i].Value()
}

// last reports whether the focused input is the final one.
func (f form) last() bool {
	return f.focus == len(f.inputs)-1
}

func (f *form) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

// update handles focus keys and forwards everything else to the focused input.
func (f *form) update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return f.move(1)
		case "shift+tab", "up":
			return f.move(-1)
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f form) view() string {
	var b strings.Builder
	for i, in := range f.inputs {
		label := f.labels[i]
		if i == f.focus {
			label = selectedStyle.Render(label)
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(in.View())
		b.WriteString("\n\n")
	}
	return b.String()
}
