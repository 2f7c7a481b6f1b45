package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lshigami/iqtester/internal/dto"
	"github.com/lshigami/iqtester/internal/guard"
	"github.com/lshigami/iqtester/internal/service"
)

type registerDoneMsg struct{ err error }

type registerScreen struct {
	auth    service.AuthService
	form    form
	err     string
	pending bool
}

func newRegisterScreen(auth service.AuthService) *registerScreen {
	return &registerScreen{
		auth: auth,
		form: newForm(
			field{label: "Username", charLimit: 150},
			field{label: "Email", charLimit: 254},
			field{label: "Password", secret: true},
			field{label: "Confirm password", secret: true},
		),
	}
}

func (s *registerScreen) Init() tea.Cmd { return nil }

func (s *registerScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case registerDoneMsg:
		s.pending = false
		if msg.err != nil {
			s.err = errorText(msg.err)
			return s, nil
		}
		return s, navigate(NavigateMsg{
			Route:  guard.RouteLogin,
			Notice: "Account created. Sign in with your new credentials.",
		})
	case tea.KeyMsg:
		if s.pending {
			return s, nil
		}
		switch msg.String() {
		case "esc":
			return s, navigate(NavigateMsg{Route: guard.RouteLogin})
		case "enter":
			if !s.form.last() {
				return s, s.form.move(1)
			}
			return s, s.submit()
		}
	}
	return s, s.form.update(msg)
}

func (s *registerScreen) submit() tea.Cmd {
	s.pending = true
	s.err = ""
	req := dto.RegisterForm{
		Username:        s.form.value(0),
		Email:           s.form.value(1),
		Password:        s.form.rawValue(2),
		PasswordConfirm: s.form.rawValue(3),
	}
	return func() tea.Msg {
		return registerDoneMsg{err: s.auth.Register(context.Background(), req)}
	}
}

func (s *registerScreen) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Create an account"))
	b.WriteString("\n\n")
	b.WriteString(s.form.view())
	switch {
	case s.pending:
		b.WriteString(mutedStyle.Render("Creating account..."))
	case s.err != "":
		b.WriteString(errorStyle.Render(s.err))
	}
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render("enter register · tab next field · esc back to sign in"))
	return b.String()
}
