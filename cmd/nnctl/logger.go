package main

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func newLogger(out io.Writer, cfg LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}
	if cfg.Pretty == nil || *cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "nnctl").Logger()
}
