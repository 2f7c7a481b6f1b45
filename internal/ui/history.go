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

const historyTimeLayout = "2006-01-02 15:04"

type historyLoadedMsg struct {
	entries []model.HistoryEntry
	err     error
}

type historyScreen struct {
	history service.HistoryService
	entries []model.HistoryEntry
	loading bool
	err     string
}

func newHistoryScreen(history service.HistoryService) *historyScreen {
	return &historyScreen{history: history, loading: true}
}

func (s *historyScreen) Init() tea.Cmd {
	return s.load()
}

func (s *historyScreen) load() tea.Cmd {
	s.loading = true
	s.err = ""
	return func() tea.Msg {
		entries, err := s.history.GetHistory(context.Background())
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (s *historyScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		s.loading = false
		if msg.err != nil {
			if expired(msg.err) {
				return s, func() tea.Msg { return authExpiredMsg{} }
			}
			s.err = "Could not load your history: " + errorText(msg.err)
			return s, nil
		}
		s.entries = msg.entries
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			if !s.loading {
				return s, s.load()
			}
		case "esc":
			return s, navigate(NavigateMsg{Route: guard.RouteHome})
		}
	}
	return s, nil
}

func (s *historyScreen) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Your results"))
	b.WriteString("\n\n")

	switch {
	case s.loading:
		b.WriteString(mutedStyle.Render("Loading history..."))
		return b.String()
	case s.err != "":
		b.WriteString(errorStyle.Render(s.err))
	case len(s.entries) == 0:
		b.WriteString("No results yet\n")
		b.WriteString(mutedStyle.Render("Take a test to see your scores here."))
	default:
		for _, e := range s.entries {
			b.WriteString(accentStyle.Render(e.Test.Name))
			b.WriteString("\n")
			fmt.Fprintf(&b, "  IQ score: %.2f\n", e.Score)
			if !e.CreatedAt.IsZero() {
				fmt.Fprintf(&b, "  Date: %s\n", e.CreatedAt.Local().Format(historyTimeLayout))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("r refresh · esc back to tests"))
	return b.String()
}
