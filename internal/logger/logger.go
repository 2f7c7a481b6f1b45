package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lshigami/iqtester/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init installs a human-readable stderr logger. Call it before anything logs.
func Init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// Configure applies the configured level and, when a log file is set, moves
// output there so the terminal UI keeps the screen. The returned func closes
// the file.
func Configure(cfg *config.Config) (func() error, error) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.File == "" {
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f.Close, nil
}
