package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lshigami/iqtester/internal/guard"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/lshigami/iqtester/internal/service"
	"github.com/rs/zerolog/log"
)

type resultsScreen struct {
	result         *model.SubmissionResult
	classification *service.IQClassification
}

func newResultsScreen(scores service.ScoreConverterService, result *model.SubmissionResult) *resultsScreen {
	s := &resultsScreen{result: result}
	if result == nil {
		return s
	}
	c, err := scores.Classify(result.IQScore)
	if err != nil {
		log.Warn().Err(err).Float64("iq_score", result.IQScore).Msg("Cannot classify score")
		return s
	}
	s.classification = &c
	return s
}

func (s *resultsScreen) Init() tea.Cmd { return nil }

func (s *resultsScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter", "esc":
			return s, navigate(NavigateMsg{Route: guard.RouteHome})
		case "h":
			return s, navigate(NavigateMsg{Route: guard.RouteHistory})
		}
	}
	return s, nil
}

func (s *resultsScreen) View() string {
	var b strings.Builder
	if s.result == nil || s.classification == nil {
		b.WriteString(errorStyle.Render("Result not available"))
		b.WriteString("\n\n")
		b.WriteString("Your score could not be retrieved. Try taking the test again.")
	} else {
		b.WriteString(titleStyle.Render("Congratulations!"))
		b.WriteString("\n\n")
		b.WriteString("Your IQ score\n")
		b.WriteString(scoreStyle.Render(fmt.Sprintf("%d", s.classification.Score)))
		b.WriteString("\n\n")
		b.WriteString("Level: " + accentStyle.Render(s.classification.Level))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(s.classification.Description))
	}
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render("enter back to tests · h history"))
	return b.String()
}
