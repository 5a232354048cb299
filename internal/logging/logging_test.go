package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "json")

	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	child := Component(log, "dispatch")
	child.Warn().Int("entry_id", 7).Msg("visible")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if rec["component"] != "dispatch" || rec["message"] != "visible" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "loud", "json")
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) || bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestSinceRoundsToMillis(t *testing.T) {
	d := Since(time.Now().Add(-1500 * time.Microsecond))
	if d%time.Millisecond != 0 || d < time.Millisecond {
		t.Errorf("expected a whole millisecond duration, got %s", d)
	}
}
