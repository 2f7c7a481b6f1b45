package attempt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lshigami/iqtester/internal/model"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed         = errors.New("attempt controller stopped")
	ErrAlreadyRunning = errors.New("attempt controller already running")
)

// API is the part of the remote API an attempt needs.
type API interface {
	ListQuestions(ctx context.Context, testID model.ID) ([]model.Question, error)
	Submit(ctx context.Context, attemptID string, answers []model.Answer) (*model.SubmissionResult, error)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type Option func(*Controller)

// WithAdvanceDelay sets the pause between an answer and the next question.
func WithAdvanceDelay(d time.Duration) Option {
	return func(c *Controller) { c.advanceDelay = d }
}

// WithTicker replaces the countdown's one-second ticker.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(c *Controller) { c.newTicker = newTicker }
}

// Controller runs one attempt. Every input (answers, ticks, network results)
// goes through a single event loop that owns the Machine.
type Controller struct {
	api          API
	attempt      *model.Attempt
	advanceDelay time.Duration
	newTicker    func(time.Duration) Ticker

	events  chan Event
	updates chan Machine
	done    chan struct{}
	running atomic.Bool

	mu   sync.RWMutex
	snap Machine

	// owned by the Run goroutine
	machine Machine
	ticker  Ticker
}

func New(api API, attempt *model.Attempt, opts ...Option) *Controller {
	c := &Controller{
		api:          api,
		attempt:      attempt,
		advanceDelay: 300 * time.Millisecond,
		newTicker:    newTimeTicker,
		events:       make(chan Event, 16),
		updates:      make(chan Machine, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap, _ = Begin(attempt)
	return c
}

// Run drives the attempt until it reaches a terminal state or ctx is
// cancelled. It returns nil on Completed, ErrNoAttempt when started without
// an attempt, the load/submit error on Errored, and ctx.Err() on cancel. No
// network response is applied after cancellation.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)
	defer close(c.updates)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.stopTimer()

	m, effects := Begin(c.attempt)
	c.machine = m
	c.publish()
	if m.State == Abandoned {
		log.Warn().Msg("Attempt controller entered without an attempt, returning home")
		return ErrNoAttempt
	}
	log.Info().
		Str("attempt_id", m.Attempt.AttemptID).
		Str("test_id", m.Attempt.TestID.String()).
		Msg("Attempt started")
	c.execute(ctx, effects)

	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.C()
		}

		select {
		case <-ctx.Done():
			log.Info().Str("state", c.machine.State.String()).Msg("Attempt cancelled")
			return ctx.Err()
		case ev := <-c.events:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.apply(ctx, ev)
		case <-tick:
			// select picks at random when a tick and cancellation are both ready
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.apply(ctx, Tick{})
		}

		switch c.machine.State {
		case Completed:
			log.Info().Float64("iq_score", c.machine.Result.IQScore).Msg("Attempt completed")
			return nil
		case Errored:
			log.Error().Err(c.machine.Err).Str("stage", string(c.machine.ErrStage)).Msg("Attempt failed")
			return c.machine.Err
		}
	}
}

// Answer selects option for the question on screen. Selections for another
// question, or a second selection for the same one, are ignored.
func (c *Controller) Answer(questionID model.ID, option model.Option) error {
	select {
	case c.events <- AnswerSelected{QuestionID: questionID, Answer: option}:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() Machine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Snapshot()
}

// Updates delivers the latest state after every transition; intermediate
// states may be skipped. Closed when Run returns.
func (c *Controller) Updates() <-chan Machine {
	return c.updates
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) apply(ctx context.Context, ev Event) {
	next, effects, err := c.machine.Apply(ev)
	if err != nil {
		log.Debug().Err(err).Msg("Attempt event ignored")
		return
	}
	if next.State != c.machine.State {
		log.Debug().
			Str("from", c.machine.State.String()).
			Str("to", next.State.String()).
			Int("answers", len(next.Answers)).
			Msg("Attempt transition")
	}
	c.machine = next
	c.execute(ctx, effects)
	c.publish()
}

func (c *Controller) execute(ctx context.Context, effects []Effect) {
	for _, effect := range effects {
		switch e := effect.(type) {
		case FetchQuestions:
			go func() {
				questions, err := c.api.ListQuestions(ctx, e.TestID)
				if err != nil {
					c.post(ctx, LoadFailed{Err: err})
					return
				}
				c.post(ctx, QuestionsLoaded{Questions: questions})
			}()
		case StartTimer:
			c.stopTimer()
			c.ticker = c.newTicker(time.Second)
		case StopTimer:
			c.stopTimer()
		case ScheduleAdvance:
			go func() {
				if c.advanceDelay > 0 {
					timer := time.NewTimer(c.advanceDelay)
					defer timer.Stop()
					select {
					case <-timer.C:
					case <-ctx.Done():
						return
					}
				}
				c.post(ctx, Advance{Index: e.Index})
			}()
		case Submit:
			log.Info().
				Str("attempt_id", e.AttemptID).
				Int("answers", len(e.Answers)).
				Msg("Submitting attempt")
			go func() {
				result, err := c.api.Submit(ctx, e.AttemptID, e.Answers)
				if err != nil {
					c.post(ctx, SubmitFailed{Err: err})
					return
				}
				c.post(ctx, SubmitSucceeded{Result: *result})
			}()
		}
	}
}

func (c *Controller) post(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *Controller) stopTimer() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) publish() {
	snap := c.machine.Snapshot()

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}
}
