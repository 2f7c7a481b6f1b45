package ui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lshigami/iqtester/internal/apiclient"
	"github.com/lshigami/iqtester/internal/dto"
	"github.com/lshigami/iqtester/internal/guard"
	"github.com/lshigami/iqtester/internal/service"
)

type loginDoneMsg struct{ err error }

type loginScreen struct {
	auth    service.AuthService
	form    form
	notice  string
	err     string
	pending bool
}

func newLoginScreen(auth service.AuthService, notice string) *loginScreen {
	return &loginScreen{
		auth:   auth,
		notice: notice,
		form: newForm(
			field{label: "Username", charLimit: 150},
			field{label: "Password", secret: true},
		),
	}
}

func (s *loginScreen) Init() tea.Cmd { return nil }

func (s *loginScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loginDoneMsg:
		s.pending = false
		if msg.err != nil {
			s.err = loginErrorText(msg.err)
			return s, nil
		}
		return s, navigate(NavigateMsg{Route: guard.RouteHome})
	case tea.KeyMsg:
		if s.pending {
			return s, nil
		}
		switch msg.String() {
		case "ctrl+r":
			return s, navigate(NavigateMsg{Route: guard.RouteRegister})
		case "enter":
			if !s.form.last() {
				return s, s.form.move(1)
			}
			return s, s.submit()
		}
	}
	return s, s.form.update(msg)
}

func (s *loginScreen) submit() tea.Cmd {
	s.pending = true
	s.err = ""
	s.notice = ""
	req := dto.LoginForm{Username: s.form.value(0), Password: s.form.rawValue(1)}
	return func() tea.Msg {
		_, err := s.auth.Login(context.Background(), req)
		return loginDoneMsg{err: err}
	}
}

func (s *loginScreen) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sign in"))
	b.WriteString("\n\n")
	if s.notice != "" {
		b.WriteString(noticeStyle.Render(s.notice))
		b.WriteString("\n\n")
	}
	b.WriteString(s.form.view())
	switch {
	case s.pending:
		b.WriteString(mutedStyle.Render("Signing in..."))
	case s.err != "":
		b.WriteString(errorStyle.Render(s.err))
	}
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render("enter sign in · tab next field · ctrl+r create an account"))
	return b.String()
}

func loginErrorText(err error) string {
	var verr *apiclient.ValidationError
	switch {
	case errors.As(err, &verr) && verr.Err == nil:
		return "Enter your username and password."
	case errors.Is(err, apiclient.ErrUnauthorized):
		return "Invalid username or password."
	}
	return errorText(err)
}
