package service

import (
	"context"

	"github.com/lshigami/iqtester/config"
	"github.com/lshigami/iqtester/internal/controller/attempt"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/rs/zerolog/log"
)

type TestAPI interface {
	attempt.API
	ListTests(ctx context.Context) ([]model.Test, error)
	StartAttempt(ctx context.Context, test model.Test) (*model.Attempt, error)
}

type TestService interface {
	GetAllTests(ctx context.Context) ([]model.Test, error)
	// StartTest creates the server-side attempt a controller needs.
	StartTest(ctx context.Context, test model.Test) (*model.Attempt, error)
	// NewAttemptController prepares the controller for an attempt; a nil
	// attempt yields a controller that ends Abandoned.
	NewAttemptController(a *model.Attempt, opts ...attempt.Option) *attempt.Controller
}

type testService struct {
	api          TestAPI
	advanceDelay attempt.Option
}

func NewTestService(api TestAPI, cfg *config.Config) TestService {
	return &testService{api: api, advanceDelay: attempt.WithAdvanceDelay(cfg.Test.AdvanceDelay)}
}

func (s *testService) GetAllTests(ctx context.Context) ([]model.Test, error) {
	tests, err := s.api.ListTests(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tests")
		return nil, err
	}
	log.Debug().Int("count", len(tests)).Msg("Tests listed")
	return tests, nil
}

func (s *testService) StartTest(ctx context.Context, test model.Test) (*model.Attempt, error) {
	a, err := s.api.StartAttempt(ctx, test)
	if err != nil {
		log.Error().Err(err).Str("test_id", test.ID.String()).Msg("Failed to start attempt")
		return nil, err
	}
	log.Info().Str("test_id", test.ID.String()).Str("attempt_id", a.AttemptID).Msg("Attempt created")
	return a, nil
}

func (s *testService) NewAttemptController(a *model.Attempt, opts ...attempt.Option) *attempt.Controller {
	return attempt.New(s.api, a, append([]attempt.Option{s.advanceDelay}, opts...)...)
}
