package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lshigami/iqtester/config"
	"github.com/lshigami/iqtester/database"
	"github.com/lshigami/iqtester/internal/apiclient"
	"github.com/lshigami/iqtester/internal/logger"
	"github.com/lshigami/iqtester/internal/repository"
	"github.com/lshigami/iqtester/internal/service"
	"github.com/lshigami/iqtester/internal/session"
	"github.com/lshigami/iqtester/internal/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	logger.Init()
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	app := fx.New(
		fx.NopLogger,

		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
		),

		fx.Provide(
			repository.NewTokenRepository,
			func(repo repository.TokenRepository) *session.Store {
				return session.NewStore(repo)
			},
		),

		// The session store is the API client's bearer token source.
		fx.Provide(
			func(cfg *config.Config, store *session.Store) *apiclient.Client {
				return apiclient.New(cfg, store)
			},
		),

		fx.Provide(
			func(client *apiclient.Client, store *session.Store) service.AuthService {
				return service.NewAuthService(client, store)
			},
			func(client *apiclient.Client, cfg *config.Config) service.TestService {
				return service.NewTestService(client, cfg)
			},
			func(client *apiclient.Client) service.HistoryService {
				return service.NewHistoryService(client)
			},
			service.NewScoreConverterService,
		),

		fx.Provide(
			func(
				store *session.Store,
				auth service.AuthService,
				tests service.TestService,
				history service.HistoryService,
				scores service.ScoreConverterService,
			) *ui.App {
				return ui.NewApp(store, auth, tests, history, scores)
			},
		),

		fx.Invoke(ConfigureLogging),
		fx.Invoke(RestoreSession),
		fx.Invoke(RunTerminalUI),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown incomplete")
	}
}

// ConfigureLogging applies the configured level and moves output to the log
// file before the terminal UI takes the screen.
func ConfigureLogging(lc fx.Lifecycle, cfg *config.Config) error {
	closeLog, err := logger.Configure(cfg)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closeLog()
		},
	})
	return nil
}

// RestoreSession loads the stored session in the background; the UI shows a
// waiting state until it finishes.
func RestoreSession(lc fx.Lifecycle, store *session.Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go store.Restore(context.Background())
			return nil
		},
	})
}

// RunTerminalUI runs the bubbletea program for the lifetime of the app. Quitting
// the program shuts the app down.
func RunTerminalUI(lc fx.Lifecycle, shutdowner fx.Shutdowner, app *ui.App, db *gorm.DB) {
	program := tea.NewProgram(app, tea.WithAltScreen())
	exited := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msg("Terminal UI starting")
			go func() {
				defer close(exited)
				if _, err := program.Run(); err != nil {
					log.Error().Err(err).Msg("Terminal UI failed")
				}
				if err := shutdowner.Shutdown(); err != nil {
					log.Error().Err(err).Msg("Shutdown request failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			program.Quit()
			select {
			case <-exited:
			case <-ctx.Done():
				log.Warn().Msg("Terminal UI did not exit in time")
			}
			if err := database.Close(db); err != nil {
				log.Error().Err(err).Msg("Failed to close session database")
				return err
			}
			log.Info().Msg("Session database closed")
			return nil
		},
	})
}
