package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stdout at level. Unknown levels mean info.
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(lvl)
}
