// Package logging configures the daemon's logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"holdtalk/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TakeField is the log field carrying the take id, so one take's capture,
// recognition and hook lines can be grepped together.
const TakeField = "take"

// Configure sets up logrus writing to the rotated log file, and to stdout
// when logging.stdout is set.
func Configure(cfg *config.Config) (*logrus.Logger, error) {
	if err := config.MustStatePaths(cfg); err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetFormatter(formatter(cfg.Logging.Format))
	if lvl, err := logrus.ParseLevel(strings.ToLower(cfg.Logging.Level)); err == nil {
		logger.SetLevel(lvl)
	}
	var out io.Writer = &lumberjack.Logger{
		Filename:   cfg.Paths.LogPath,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     30,
	}
	if cfg.Logging.Stdout {
		out = io.MultiWriter(os.Stdout, out)
	}
	logger.SetOutput(out)
	return logger, nil
}

func formatter(format string) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "message"}}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

// WithTake tags log lines with a take id.
func WithTake(l logrus.FieldLogger, take string) *logrus.Entry {
	return l.WithField(TakeField, take)
}

// NewTestLogger returns a logger that discards output.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}
