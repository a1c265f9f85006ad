package logger

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitReadsEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	Init()

	if L().GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", L().GetLevel())
	}
	if _, ok := L().Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", L().Formatter)
	}

	t.Setenv("LOG_LEVEL", "nonsense")
	t.Setenv("LOG_FORMAT", "")
	Init()

	if L().GetLevel() != log.InfoLevel {
		t.Fatalf("expected fallback to info, got %s", L().GetLevel())
	}
	if _, ok := L().Formatter.(*log.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", L().Formatter)
	}
}
