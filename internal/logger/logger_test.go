package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

func TestLogger_IncludesStackAndServiceOnError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "sharecar-test")
	log.Error().Stack().Err(errors.New("boom")).Msg("failure")

	var m map[string]any
	if err := json.Unmarshal([]byte(lastNonEmptyLine(buf.String())), &m); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if m["service"] != "sharecar-test" {
		t.Fatalf("service field = %v", m["service"])
	}
	if m["error"] != "boom" {
		t.Fatalf("error field = %v", m["error"])
	}
	if _, ok := m["stack"]; !ok {
		t.Fatalf("expected stack field in %v", m)
	}
	if _, ok := m["time"]; !ok {
		t.Fatalf("expected time field in %v", m)
	}
}

func TestConsoleLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsole(&buf, zerolog.WarnLevel)
	log.Info().Msg("hidden")
	log.Warn().Str("card_id", "c1").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "card_id=c1") {
		t.Fatalf("warn line missing: %q", out)
	}
}
