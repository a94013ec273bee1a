package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func init() {
	zerolog.TimestampFieldName = "timestamp"
	// per-logger levels decide what is written
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

// New builds the service logger for the given environment. Local runs get a
// human readable console writer, everything else writes JSON lines.
func New(env string, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stdout
	}

	var level zerolog.Level
	switch env {
	case envLocal:
		level = zerolog.TraceLevel
		consoleWriter := zerolog.NewConsoleWriter()
		consoleWriter.TimeFormat = time.DateTime
		consoleWriter.Out = out
		out = consoleWriter
	case envDev:
		level = zerolog.DebugLevel
	case envProd:
		level = zerolog.InfoLevel
	default:
		return zerolog.Nop(), fmt.Errorf("unknown env: %s", env)
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "tasks").
		Int("pid", os.Getpid()).
		Logger(), nil
}
