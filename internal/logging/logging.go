package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Production gets JSON lines, everything else
// human-readable text. An unknown level falls back to info.
func New(level, env string) *logrus.Logger {
	return newWithOutput(level, env, os.Stdout)
}

func newWithOutput(level, env string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid LOG_LEVEL %q, using info", level)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
