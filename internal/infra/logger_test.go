package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerProductionEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Str("image_id", "abc").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "shaggydog" {
		t.Fatalf("service = %v, want shaggydog", entry["service"])
	}
	if entry["image_id"] != "abc" {
		t.Fatalf("image_id = %v, want abc", entry["image_id"])
	}
}

func TestNewLoggerDevelopmentLevel(t *testing.T) {
	logger := newLogger("development", &bytes.Buffer{})
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %s, want debug", logger.GetLevel())
	}
}

func TestOrNop(t *testing.T) {
	if got := OrNop(nil); got.GetLevel() != zerolog.Disabled {
		t.Fatalf("OrNop(nil) level = %s, want disabled", got.GetLevel())
	}
	l := zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel)
	if got := OrNop(&l); got.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("OrNop level = %s, want warn", got.GetLevel())
	}
}
