package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewTagsService(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Service: "qualifier-eu"})
	logger.Info().Str("conversation_id", "conv-1").Msg("turn handled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if entry["service"] != "qualifier-eu" || entry["conversation_id"] != "conv-1" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("entry has no timestamp: %v", entry)
	}
}

func TestNewDefaultsService(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{})
	logger.Info().Msg("ready")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if entry["service"] != defaultService {
		t.Fatalf("service = %v", entry["service"])
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		conf Config
		want zerolog.Level
	}{
		{"default", Config{}, zerolog.InfoLevel},
		{"debug flag", Config{Debug: true}, zerolog.DebugLevel},
		{"explicit level wins", Config{Debug: true, Level: "WARN"}, zerolog.WarnLevel},
		{"unknown level falls back", Config{Level: "loud"}, zerolog.InfoLevel},
	}

	for _, tc := range cases {
		if got := level(tc.conf); got != tc.want {
			t.Fatalf("%s: level() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
