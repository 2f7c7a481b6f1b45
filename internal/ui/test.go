package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lshigami/iqtester/internal/controller/attempt"
	"github.com/lshigami/iqtester/internal/guard"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/lshigami/iqtester/internal/service"
	"github.com/rs/zerolog/log"
)

// Messages carry their controller so a message from a previous attempt is
// never applied to a new screen.
type attemptUpdateMsg struct {
	ctrl *attempt.Controller
	snap attempt.Machine
}

type attemptDoneMsg struct {
	ctrl *attempt.Controller
	err  error
}

var optionKeys = map[string]int{
	"a": 0, "b": 1, "c": 2, "d": 3,
	"1": 0, "2": 1, "3": 2, "4": 3,
}

type testScreen struct {
	ctrl   *attempt.Controller
	ctx    context.Context
	cancel context.CancelFunc
	snap   attempt.Machine
	failed bool
}

func newTestScreen(tests service.TestService, a *model.Attempt) *testScreen {
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := tests.NewAttemptController(a)
	return &testScreen{ctrl: ctrl, ctx: ctx, cancel: cancel, snap: ctrl.Snapshot()}
}

func (s *testScreen) Init() tea.Cmd {
	ctrl, ctx := s.ctrl, s.ctx
	run := func() tea.Msg {
		return attemptDoneMsg{ctrl: ctrl, err: ctrl.Run(ctx)}
	}
	return tea.Batch(run, s.waitForUpdate())
}

func (s *testScreen) waitForUpdate() tea.Cmd {
	ctrl := s.ctrl
	return func() tea.Msg {
		snap, ok := <-ctrl.Updates()
		if !ok {
			return nil
		}
		return attemptUpdateMsg{ctrl: ctrl, snap: snap}
	}
}

// Close stops the attempt when the screen is left.
func (s *testScreen) Close() {
	s.cancel()
}

func (s *testScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case attemptUpdateMsg:
		if msg.ctrl != s.ctrl {
			return s, nil
		}
		s.snap = msg.snap
		return s, s.waitForUpdate()
	case attemptDoneMsg:
		if msg.ctrl != s.ctrl {
			return s, nil
		}
		return s, s.finish(msg.err)
	case tea.KeyMsg:
		return s, s.handleKey(msg)
	}
	return s, nil
}

func (s *testScreen) finish(err error) tea.Cmd {
	s.snap = s.ctrl.Snapshot()
	switch {
	case err == nil && s.snap.State == attempt.Completed:
		return navigate(NavigateMsg{Route: guard.RouteResults, Result: s.snap.Result})
	case errors.Is(err, attempt.ErrNoAttempt):
		return navigate(NavigateMsg{Route: guard.RouteHome, Notice: "Start a test from the list to begin."})
	case errors.Is(err, context.Canceled):
		return nil
	case expired(err):
		return func() tea.Msg { return authExpiredMsg{} }
	}
	s.failed = true
	return nil
}

func (s *testScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if s.failed {
		return navigate(NavigateMsg{Route: guard.RouteHome})
	}
	if key == "esc" {
		s.cancel()
		return navigate(NavigateMsg{Route: guard.RouteHome, Notice: "Test abandoned."})
	}

	i, ok := optionKeys[key]
	if !ok {
		return nil
	}
	q, ok := s.snap.Current()
	if !ok || len(s.snap.Answers) > s.snap.Index {
		return nil
	}
	if err := s.ctrl.Answer(q.ID, model.Options[i]); err != nil {
		log.Debug().Err(err).Str("question_id", q.ID.String()).Msg("Answer not delivered")
	}
	return nil
}

func (s *testScreen) View() string {
	var b strings.Builder
	switch s.snap.State {
	case attempt.Loading:
		b.WriteString(mutedStyle.Render("Loading questions..."))
	case attempt.InProgress:
		s.renderQuestion(&b)
	case attempt.Submitting:
		b.WriteString(mutedStyle.Render("Submitting your answers..."))
	case attempt.Completed:
		b.WriteString(mutedStyle.Render("Test completed."))
	case attempt.Abandoned:
		b.WriteString(mutedStyle.Render("No test in progress."))
	case attempt.Errored:
		if s.snap.ErrStage == attempt.StageSubmit {
			b.WriteString(errorStyle.Render("Could not submit your answers: " + errorText(s.snap.Err)))
			b.WriteString("\n")
			fmt.Fprintf(&b, "%d of %d answers are still recorded for this attempt.", len(s.snap.Answers), len(s.snap.Questions))
		} else {
			b.WriteString(errorStyle.Render("Could not load the test: " + errorText(s.snap.Err)))
		}
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("press any key to return to the test list"))
	}
	return b.String()
}

func (s *testScreen) renderQuestion(b *strings.Builder) {
	q, ok := s.snap.Current()
	if !ok {
		return
	}
	remaining := s.snap.Remaining
	fmt.Fprintf(b, "%s    %s\n\n",
		titleStyle.Render(fmt.Sprintf("Question %d of %d", s.snap.Index+1, len(s.snap.Questions))),
		accentStyle.Render(fmt.Sprintf("Time left %02d:%02d", remaining/60, remaining%60)),
	)
	b.WriteString(q.Text)
	b.WriteString("\n\n")

	var chosen model.Option
	if len(s.snap.Answers) > s.snap.Index {
		chosen = s.snap.Answers[s.snap.Index].Answer
	}
	for _, c := range q.Choices() {
		line := fmt.Sprintf("%s) %s", c.Option.Letter(), c.Text)
		if c.Option == chosen {
			b.WriteString(selectedStyle.Render("› " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("a-d or 1-4 answer · esc abandon"))
}
