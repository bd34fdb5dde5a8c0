package utils

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerLevel(t *testing.T) {
	if got := NewLogger("debug").GetLevel(); got != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %v", got)
	}
	if got := NewLogger("not-a-level").GetLevel(); got != logrus.InfoLevel {
		t.Errorf("Expected info fallback, got %v", got)
	}
}

func TestNewLoggerWritesToStderr(t *testing.T) {
	// Results go to stdout; logs must stay off it.
	if NewLogger("info").Out != os.Stderr {
		t.Error("Expected logger output on stderr")
	}
}
