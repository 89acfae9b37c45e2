// Package logging wraps github.com/rs/zerolog the way the teacher's logr
// package wraps it for peer/impl: a single configured Logger, console
// output for local runs, level controlled by flag or environment.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-writer zerolog.Logger at the given level. levelName
// accepts zerolog's level names (trace, debug, info, warn, error) and falls
// back to info on anything unrecognized so a typo in --log-level never
// silences the single required "consensus" line.
func New(levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// LevelFromEnv reads PAXOS_LOG_LEVEL, returning fallback when it is unset or
// empty — used as the default value of the CLI's --log-level flag.
func LevelFromEnv(fallback string) string {
	if v := os.Getenv("PAXOS_LOG_LEVEL"); v != "" {
		return v
	}
	return fallback
}
