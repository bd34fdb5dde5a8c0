package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates the process logger. Output goes to stderr so log
// lines never mix with results printed on stdout.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	return logger
}
