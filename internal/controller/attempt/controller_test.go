package attempt_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/lshigami/iqtester/internal/controller/attempt"
	"github.com/lshigami/iqtester/internal/model"
)

type fakeAPI struct {
	questions []model.Question
	loadErr   error
	submitErr error
	// gate, when set, blocks Submit until closed.
	gate chan struct{}

	listCalls   atomic.Int32
	submitCalls atomic.Int32

	mu        sync.Mutex
	submitted []model.Answer
}

func (f *fakeAPI) ListQuestions(ctx context.Context, testID model.ID) ([]model.Question, error) {
	f.listCalls.Add(1)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.questions, nil
}

func (f *fakeAPI) Submit(ctx context.Context, attemptID string, answers []model.Answer) (*model.SubmissionResult, error) {
	f.submitCalls.Add(1)
	f.mu.Lock()
	f.submitted = answers
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &model.SubmissionResult{IQScore: 100 + float64(len(answers))}, nil
}

func (f *fakeAPI) lastSubmitted() []model.Answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

// tickers hands every ticker the controller creates to the test.
func tickers() (chan *fakeTicker, attempt.Option) {
	created := make(chan *fakeTicker, 4)
	return created, attempt.WithTicker(func(time.Duration) attempt.Ticker {
		t := &fakeTicker{c: make(chan time.Time)}
		created <- t
		return t
	})
}

type runResult struct{ err error }

func start(ctx context.Context, c *attempt.Controller) <-chan runResult {
	out := make(chan runResult, 1)
	go func() { out <- runResult{err: c.Run(ctx)} }()
	return out
}

func waitForQuestion(g *WithT, c *attempt.Controller, id model.ID) {
	g.Eventually(func() model.ID {
		q, _ := c.Snapshot().Current()
		return q.ID
	}).Should(Equal(id))
}

func TestController_AnswersAllQuestions(t *testing.T) {
	g := NewWithT(t)

	api := &fakeAPI{questions: testQuestions(3)}
	created, withTicker := tickers()
	c := attempt.New(api, testAttempt(5), attempt.WithAdvanceDelay(0), withTicker)
	result := start(context.Background(), c)

	var ticker *fakeTicker
	g.Eventually(created).Should(Receive(&ticker))

	for _, id := range []model.ID{"a", "b", "c"} {
		waitForQuestion(g, c, id)
		g.Expect(c.Answer(id, model.Option1)).To(Succeed())
	}

	var res runResult
	g.Eventually(result).Should(Receive(&res))
	g.Expect(res.err).NotTo(HaveOccurred())

	snap := c.Snapshot()
	g.Expect(snap.State).To(Equal(attempt.Completed))
	g.Expect(snap.Result.IQScore).To(Equal(103.0))
	g.Expect(api.submitCalls.Load()).To(Equal(int32(1)))
	g.Expect(api.lastSubmitted()).To(HaveLen(3))
	g.Expect(ticker.stopped.Load()).To(BeTrue())
	g.Expect(c.Done()).To(BeClosed())
}

func TestController_TimeoutSubmitsAnswersSoFar(t *testing.T) {
	g := NewWithT(t)

	api := &fakeAPI{questions: testQuestions(3)}
	created, withTicker := tickers()
	c := attempt.New(api, testAttempt(1), attempt.WithAdvanceDelay(0), withTicker)
	result := start(context.Background(), c)

	var ticker *fakeTicker
	g.Eventually(created).Should(Receive(&ticker))
	waitForQuestion(g, c, "a")
	g.Expect(c.Answer("a", model.Option2)).To(Succeed())
	waitForQuestion(g, c, "b")

	for i := 0; i < 60; i++ {
		ticker.c <- time.Now()
	}

	var res runResult
	g.Eventually(result).Should(Receive(&res))
	g.Expect(res.err).NotTo(HaveOccurred())
	g.Expect(api.submitCalls.Load()).To(Equal(int32(1)))
	g.Expect(api.lastSubmitted()).To(Equal([]model.Answer{{QuestionID: "a", Answer: model.Option2}}))
	g.Expect(ticker.stopped.Load()).To(BeTrue())
	g.Expect(c.Snapshot().Remaining).To(Equal(0))
}

func TestController_WithoutAttempt(t *testing.T) {
	g := NewWithT(t)

	api := &fakeAPI{questions: testQuestions(3)}
	c := attempt.New(api, nil)

	g.Expect(c.Run(context.Background())).To(MatchError(attempt.ErrNoAttempt))
	g.Expect(c.Snapshot().State).To(Equal(attempt.Abandoned))
	g.Expect(api.listCalls.Load()).To(BeZero())
	g.Expect(api.submitCalls.Load()).To(BeZero())
	g.Expect(c.Answer("a", model.Option1)).To(MatchError(attempt.ErrClosed))
}

func TestController_LoadFailure(t *testing.T) {
	g := NewWithT(t)

	boom := errors.New("questions unavailable")
	api := &fakeAPI{loadErr: boom}
	c := attempt.New(api, testAttempt(1))

	g.Expect(c.Run(context.Background())).To(MatchError(boom))
	snap := c.Snapshot()
	g.Expect(snap.State).To(Equal(attempt.Errored))
	g.Expect(snap.ErrStage).To(Equal(attempt.StageLoad))
	g.Expect(api.submitCalls.Load()).To(BeZero())
}

func TestController_SubmitFailureKeepsAnswers(t *testing.T) {
	g := NewWithT(t)

	boom := errors.New("submit rejected")
	api := &fakeAPI{questions: testQuestions(1), submitErr: boom}
	created, withTicker := tickers()
	c := attempt.New(api, testAttempt(1), withTicker)
	result := start(context.Background(), c)

	g.Eventually(created).Should(Receive())
	waitForQuestion(g, c, "a")
	g.Expect(c.Answer("a", model.Option3)).To(Succeed())

	var res runResult
	g.Eventually(result).Should(Receive(&res))
	g.Expect(res.err).To(MatchError(boom))

	snap := c.Snapshot()
	g.Expect(snap.State).To(Equal(attempt.Errored))
	g.Expect(snap.ErrStage).To(Equal(attempt.StageSubmit))
	g.Expect(snap.Answers).To(HaveLen(1))
}

func TestController_CancelIgnoresLateResponse(t *testing.T) {
	g := NewWithT(t)

	api := &fakeAPI{questions: testQuestions(1), gate: make(chan struct{})}
	created, withTicker := tickers()
	c := attempt.New(api, testAttempt(1), withTicker)

	ctx, cancel := context.WithCancel(context.Background())
	result := start(ctx, c)

	var ticker *fakeTicker
	g.Eventually(created).Should(Receive(&ticker))
	waitForQuestion(g, c, "a")
	g.Expect(c.Answer("a", model.Option1)).To(Succeed())
	g.Eventually(api.submitCalls.Load).Should(Equal(int32(1)))

	cancel()
	var res runResult
	g.Eventually(result).Should(Receive(&res))
	g.Expect(res.err).To(MatchError(context.Canceled))

	close(api.gate)
	g.Consistently(func() attempt.State { return c.Snapshot().State }, 100*time.Millisecond).
		Should(Equal(attempt.Submitting))
	g.Expect(ticker.stopped.Load()).To(BeTrue())
}

func TestController_CancelStopsTicker(t *testing.T) {
	g := NewWithT(t)

	api := &fakeAPI{questions: testQuestions(2)}
	created, withTicker := tickers()
	c := attempt.New(api, testAttempt(1), withTicker)

	ctx, cancel := context.WithCancel(context.Background())
	result := start(ctx, c)

	var ticker *fakeTicker
	g.Eventually(created).Should(Receive(&ticker))
	cancel()

	g.Eventually(result).Should(Receive())
	g.Expect(ticker.stopped.Load()).To(BeTrue())
	g.Eventually(c.Updates()).Should(BeClosed())
}

func TestController_RunOnce(t *testing.T) {
	g := NewWithT(t)

	c := attempt.New(&fakeAPI{}, nil)
	g.Expect(c.Run(context.Background())).To(MatchError(attempt.ErrNoAttempt))
	g.Expect(c.Run(context.Background())).To(MatchError(attempt.ErrAlreadyRunning))
}

// cancelOnLastTick holds every tick of a one-minute countdown. When only the
// final tick is left it cancels the run, so the tick and the cancellation are
// ready together.
type cancelOnLastTick struct {
	c      chan time.Time
	cancel context.CancelFunc
}

func (t *cancelOnLastTick) C() <-chan time.Time {
	if len(t.c) == 1 {
		t.cancel()
	}
	return t.c
}

func (t *cancelOnLastTick) Stop() {}

func TestController_CancelWinsOverFinalTick(t *testing.T) {
	g := NewWithT(t)

	for run := 0; run < 50; run++ {
		api := &fakeAPI{questions: testQuestions(2)}
		ctx, cancel := context.WithCancel(context.Background())
		c := attempt.New(api, testAttempt(1), attempt.WithTicker(func(time.Duration) attempt.Ticker {
			ticks := make(chan time.Time, 60)
			for i := 0; i < 60; i++ {
				ticks <- time.Now()
			}
			return &cancelOnLastTick{c: ticks, cancel: cancel}
		}))

		g.Expect(c.Run(ctx)).To(MatchError(context.Canceled))
		cancel()

		snap := c.Snapshot()
		g.Expect(snap.State).To(Equal(attempt.InProgress))
		g.Expect(snap.Remaining).To(Equal(1))
		g.Expect(api.submitCalls.Load()).To(BeZero())
	}
}
