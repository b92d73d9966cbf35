package logging

import (
	"io"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/livedesk/internal/config"
)

// Setup configures the global zerolog logger from config. When a file path is
// set the JSON stream additionally goes to a daily-rotated file.
func Setup(cfg config.LoggingConfig) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if cfg.Format == "console" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		writers = append(writers, os.Stderr)
	}

	if cfg.File != "" {
		rotator, err := rotatelogs.New(
			cfg.File+".%Y%m%d",
			rotatelogs.WithLinkName(cfg.File),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour),
		)
		if err != nil {
			return err
		}
		writers = append(writers, rotator)
	}

	if len(writers) == 1 {
		log.Logger = log.Output(writers[0])
	} else {
		log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))
	}

	return nil
}
