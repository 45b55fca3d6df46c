package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Settings are the process settings read from the environment.
type Settings struct {
	DBPath     string `env:"CANON_DB" envDefault:"canon.db"`
	ConfigPath string `env:"CANON_CONFIG"`
	LogLevel   string `env:"CANON_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"CANON_LOG_FORMAT" envDefault:"text"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Level parses LogLevel. Empty means info; unknown levels are an error.
func (s Settings) Level() (slog.Level, error) {
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s.LogLevel)
	}
	return level, nil
}

// Logger builds the process logger writing to w.
func (s Settings) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := s.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(s.LogFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", s.LogFormat)
	}
}
