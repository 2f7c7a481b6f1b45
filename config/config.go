package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	API      API
	Database Database
	Log      Log
	Test     Test
}

type API struct {
	BaseURL string
	Timeout time.Duration
}

type Database struct {
	Path string
}

type Log struct {
	Level string
	File  string
}

type Test struct {
	// AdvanceDelay is the pause between answering a question and showing the next one.
	AdvanceDelay time.Duration
}

// flagKeys maps command-line flags to the env keys they override.
var flagKeys = map[string]string{
	"api-url":   "API_BASE_URL",
	"db":        "SESSION_DB_PATH",
	"log-level": "LOG_LEVEL",
	"log-file":  "LOG_FILE",
}

// RegisterFlags declares the flags understood by NewConfig on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("api-url", "", "base URL of the IQ test API")
	fs.String("db", "", "path of the local session database")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-file", "", "write logs to this file instead of stderr")
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("API_BASE_URL", "http://localhost:8000/api")
	viper.SetDefault("HTTP_TIMEOUT", "10s")
	viper.SetDefault("SESSION_DB_PATH", defaultPath("session.db"))
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FILE", defaultPath("iqtester.log"))
	viper.SetDefault("ADVANCE_DELAY", "300ms")

	for name, key := range flagKeys {
		if f := pflag.CommandLine.Lookup(name); f != nil && f.Changed {
			if err := viper.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.API.BaseURL = viper.GetString("API_BASE_URL")
	config.API.Timeout = viper.GetDuration("HTTP_TIMEOUT")
	config.Database.Path = viper.GetString("SESSION_DB_PATH")
	config.Log.Level = viper.GetString("LOG_LEVEL")
	config.Log.File = viper.GetString("LOG_FILE")
	config.Test.AdvanceDelay = viper.GetDuration("ADVANCE_DELAY")

	log.Info().
		Str("api_base_url", config.API.BaseURL).
		Str("session_db", config.Database.Path).
		Str("log_level", config.Log.Level).
		Msg("Config loaded")
	return &config, nil
}

// defaultPath places name in the per-user config directory.
func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "iqtester", name)
}
