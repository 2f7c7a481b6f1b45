package attempt

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lshigami/iqtester/internal/model"
)

type State int

const (
	Loading State = iota
	InProgress
	Submitting
	Completed
	Errored
	// Abandoned is entered when the controller is started without an attempt.
	Abandoned
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case InProgress:
		return "in_progress"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	case Abandoned:
		return "abandoned"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Completed || s == Errored || s == Abandoned
}

// Stage tells which network step an Errored machine failed in.
type Stage string

const (
	StageLoad   Stage = "load"
	StageSubmit Stage = "submit"
)

var (
	ErrNoAttempt        = errors.New("no attempt started for this test")
	ErrNoQuestions      = errors.New("no questions available for this test")
	ErrInvalidTimeLimit = errors.New("test has no valid time limit")
	ErrIgnored          = errors.New("event ignored")
)

// Event is an input to the machine.
type Event interface{ event() }

type QuestionsLoaded struct{ Questions []model.Question }

type LoadFailed struct{ Err error }

type AnswerSelected struct {
	QuestionID model.ID
	Answer     model.Option
}

// Advance moves to question Index once the presentation delay has passed.
type Advance struct{ Index int }

// Tick is one elapsed second of the countdown.
type Tick struct{}

type SubmitSucceeded struct{ Result model.SubmissionResult }

type SubmitFailed struct{ Err error }

func (QuestionsLoaded) event() {}
func (LoadFailed) event()      {}
func (AnswerSelected) event()  {}
func (Advance) event()         {}
func (Tick) event()            {}
func (SubmitSucceeded) event() {}
func (SubmitFailed) event()    {}

// Effect is a side effect requested by a transition. The machine never
// performs I/O itself.
type Effect interface{ effect() }

type FetchQuestions struct{ TestID model.ID }

type StartTimer struct{}

type StopTimer struct{}

type ScheduleAdvance struct{ Index int }

type Submit struct {
	AttemptID string
	Answers   []model.Answer
}

func (FetchQuestions) effect()  {}
func (StartTimer) effect()      {}
func (StopTimer) effect()       {}
func (ScheduleAdvance) effect() {}
func (Submit) effect()          {}

// Machine is the state of one test attempt. Apply returns the next state and
// leaves the receiver untouched.
type Machine struct {
	State     State
	Attempt   model.Attempt
	Questions []model.Question
	Index     int
	Answers   []model.Answer
	// Remaining is the countdown in whole seconds.
	Remaining int
	Result    *model.SubmissionResult
	Err       error
	ErrStage  Stage

	submitted bool
}

// Begin creates the machine for attempt. Without a valid attempt the machine
// is Abandoned and requests nothing.
func Begin(attempt *model.Attempt) (Machine, []Effect) {
	if !attempt.Valid() {
		return Machine{State: Abandoned, Err: ErrNoAttempt}, nil
	}
	m := Machine{State: Loading, Attempt: *attempt}
	return m, []Effect{FetchQuestions{TestID: attempt.TestID}}
}

func (m Machine) Apply(ev Event) (Machine, []Effect, error) {
	switch ev := ev.(type) {
	case QuestionsLoaded:
		return m.onQuestionsLoaded(ev)
	case LoadFailed:
		if m.State != Loading {
			return m, nil, ignored(ev, m.State)
		}
		return m.fail(StageLoad, ev.Err), nil, nil
	case AnswerSelected:
		return m.onAnswer(ev)
	case Advance:
		return m.onAdvance(ev)
	case Tick:
		return m.onTick()
	case SubmitSucceeded:
		if m.State != Submitting {
			return m, nil, ignored(ev, m.State)
		}
		result := ev.Result
		m.State = Completed
		m.Result = &result
		return m, nil, nil
	case SubmitFailed:
		if m.State != Submitting {
			return m, nil, ignored(ev, m.State)
		}
		return m.fail(StageSubmit, ev.Err), nil, nil
	}
	return m, nil, fmt.Errorf("%w: unknown event %T", ErrIgnored, ev)
}

func (m Machine) onQuestionsLoaded(ev QuestionsLoaded) (Machine, []Effect, error) {
	if m.State != Loading {
		return m, nil, ignored(ev, m.State)
	}
	if len(ev.Questions) == 0 {
		return m.fail(StageLoad, ErrNoQuestions), nil, nil
	}
	if m.Attempt.TimeLimitMinutes <= 0 {
		return m.fail(StageLoad, ErrInvalidTimeLimit), nil, nil
	}

	m.Questions = slices.Clone(ev.Questions)
	m.Index = 0
	m.Remaining = m.Attempt.TimeLimitMinutes * 60
	m.State = InProgress
	return m, []Effect{StartTimer{}}, nil
}

func (m Machine) onAnswer(ev AnswerSelected) (Machine, []Effect, error) {
	if m.State != InProgress {
		return m, nil, ignored(ev, m.State)
	}
	if len(m.Answers) > m.Index {
		return m, nil, fmt.Errorf("%w: question %d already answered", ErrIgnored, m.Index)
	}
	if current := m.Questions[m.Index]; current.ID != ev.QuestionID {
		return m, nil, fmt.Errorf("%w: answer for question %s, showing %s", ErrIgnored, ev.QuestionID, current.ID)
	}
	if !ev.Answer.Valid() {
		return m, nil, fmt.Errorf("%w: unknown option %q", ErrIgnored, ev.Answer)
	}

	m.Answers = append(slices.Clip(m.Answers), model.Answer{QuestionID: ev.QuestionID, Answer: ev.Answer})

	if m.Index == len(m.Questions)-1 {
		return m.submit()
	}
	return m, []Effect{ScheduleAdvance{Index: m.Index + 1}}, nil
}

func (m Machine) onAdvance(ev Advance) (Machine, []Effect, error) {
	if m.State != InProgress {
		return m, nil, ignored(ev, m.State)
	}
	if ev.Index != m.Index+1 || len(m.Answers) != ev.Index || ev.Index >= len(m.Questions) {
		return m, nil, fmt.Errorf("%w: advance to %d from %d", ErrIgnored, ev.Index, m.Index)
	}
	m.Index = ev.Index
	return m, nil, nil
}

func (m Machine) onTick() (Machine, []Effect, error) {
	if m.State != InProgress {
		return m, nil, ignored(Tick{}, m.State)
	}
	m.Remaining--
	if m.Remaining > 0 {
		return m, nil, nil
	}
	m.Remaining = 0
	return m.submit()
}

// submit is the single path into Submitting; the submitted flag makes the
// Submit effect one-shot whichever trigger gets here first.
func (m Machine) submit() (Machine, []Effect, error) {
	if m.submitted {
		return m, nil, fmt.Errorf("%w: already submitted", ErrIgnored)
	}
	m.submitted = true
	m.State = Submitting
	return m, []Effect{
		StopTimer{},
		Submit{AttemptID: m.Attempt.AttemptID, Answers: slices.Clone(m.Answers)},
	}, nil
}

func (m Machine) fail(stage Stage, err error) Machine {
	m.State = Errored
	m.ErrStage = stage
	m.Err = err
	return m
}

// Current returns the question on screen.
func (m Machine) Current() (model.Question, bool) {
	if m.State != InProgress || m.Index >= len(m.Questions) {
		return model.Question{}, false
	}
	return m.Questions[m.Index], true
}

// Snapshot returns a copy of m that shares no slices with it.
func (m Machine) Snapshot() Machine {
	m.Questions = slices.Clone(m.Questions)
	m.Answers = slices.Clone(m.Answers)
	if m.Result != nil {
		result := *m.Result
		m.Result = &result
	}
	return m
}

func ignored(ev Event, s State) error {
	return fmt.Errorf("%w: %T in state %s", ErrIgnored, ev, s)
}
