package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type named string

func (n named) String() string { return "name:" + string(n) }

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	log.Info("Mock response sent",
		"status", 200,
		"url", "https://api.test/users/1",
		"hit", true,
		"error", errors.New("boom"),
		"duration", 1500*time.Millisecond,
		"mock", named("user"),
		"dangling",
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	checks := map[string]interface{}{
		"level":   "info",
		"message": "Mock response sent",
		"status":  float64(200),
		"url":     "https://api.test/users/1",
		"hit":     true,
		"error":   "boom",
		"mock":    "name:user",
	}
	for key, want := range checks {
		if entry[key] != want {
			t.Errorf("%s = %v, want %v", key, entry[key], want)
		}
	}
	if _, ok := entry["duration"]; !ok {
		t.Error("duration field missing")
	}
	if _, ok := entry["dangling"]; ok {
		t.Error("key without value should be dropped")
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestLoggerInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "loud")
	log.Debug("hidden")
	log.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("discarded", "k", "v")
	log.Error("discarded")
}
