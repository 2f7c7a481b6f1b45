package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lshigami/iqtester/internal/guard"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/lshigami/iqtester/internal/service"
)

type testsLoadedMsg struct {
	tests []model.Test
	err   error
}

type attemptStartedMsg struct {
	attempt *model.Attempt
	err     error
}

type homeScreen struct {
	tests    service.TestService
	notice   string
	list     []model.Test
	cursor   int
	loading  bool
	starting bool
	err      string
}

func newHomeScreen(tests service.TestService, notice string) *homeScreen {
	return &homeScreen{tests: tests, notice: notice, loading: true}
}

func (s *homeScreen) Init() tea.Cmd {
	return s.load()
}

func (s *homeScreen) load() tea.Cmd {
	s.loading = true
	s.err = ""
	return func() tea.Msg {
		tests, err := s.tests.GetAllTests(context.Background())
		return testsLoadedMsg{tests: tests, err: err}
	}
}

func (s *homeScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case testsLoadedMsg:
		s.loading = false
		if msg.err != nil {
			if expired(msg.err) {
				return s, func() tea.Msg { return authExpiredMsg{} }
			}
			s.err = "Could not load tests: " + errorText(msg.err)
			return s, nil
		}
		s.list = msg.tests
		s.cursor = 0
	case attemptStartedMsg:
		s.starting = false
		if msg.err != nil {
			if expired(msg.err) {
				return s, func() tea.Msg { return authExpiredMsg{} }
			}
			s.err = "Could not start the test: " + errorText(msg.err)
			return s, nil
		}
		return s, navigate(NavigateMsg{Route: guard.RouteTest, Attempt: msg.attempt})
	case tea.KeyMsg:
		if s.loading || s.starting {
			return s, nil
		}
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.list)-1 {
				s.cursor++
			}
		case "r":
			return s, s.load()
		case "enter":
			if len(s.list) == 0 {
				return s, nil
			}
			return s, s.start(s.list[s.cursor])
		}
	}
	return s, nil
}

func (s *homeScreen) start(test model.Test) tea.Cmd {
	s.starting = true
	s.err = ""
	s.notice = ""
	return func() tea.Msg {
		a, err := s.tests.StartTest(context.Background(), test)
		return attemptStartedMsg{attempt: a, err: err}
	}
}

func (s *homeScreen) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Available tests"))
	b.WriteString("\n\n")
	if s.notice != "" {
		b.WriteString(noticeStyle.Render(s.notice))
		b.WriteString("\n\n")
	}

	switch {
	case s.loading:
		b.WriteString(mutedStyle.Render("Loading tests..."))
		return b.String()
	case s.err != "" && len(s.list) == 0:
		b.WriteString(errorStyle.Render(s.err))
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("r retry"))
		return b.String()
	case len(s.list) == 0:
		b.WriteString("No tests available\n")
		b.WriteString(mutedStyle.Render("There are no tests to take right now. Check back later."))
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("r refresh"))
		return b.String()
	}

	for i, t := range s.list {
		line := fmt.Sprintf("%s  (%d min)", t.Name, t.TimeLimitMinutes)
		if i == s.cursor {
			b.WriteString(selectedStyle.Render("› " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
		if t.Description != "" {
			b.WriteString("    " + mutedStyle.Render(t.Description) + "\n")
		}
	}
	b.WriteString("\n")
	switch {
	case s.starting:
		b.WriteString(mutedStyle.Render("Starting test..."))
	case s.err != "":
		b.WriteString(errorStyle.Render(s.err))
	default:
		b.WriteString(mutedStyle.Render("↑/↓ choose · enter start · r refresh"))
	}
	return b.String()
}
