package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger. Debug logs go to stderr; otherwise
// logs are written to LogFile when toFile is set and dropped when it is not, so they never
// interleave with the live progress display.
func InitLogger(debug, toFile bool) (io.Closer, error) {
	switch {
	case debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		SetLogOutput(os.Stderr)
		return io.NopCloser(nil), nil
	case toFile:
		f, err := os.OpenFile(LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        f,
			NoColor:    true,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
		return f, nil
	default:
		zerolog.SetGlobalLevel(zerolog.Disabled)
		return io.NopCloser(nil), nil
	}
}

func SetLogOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}
