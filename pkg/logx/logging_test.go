package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerWritesFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if m["message"] != "hello" || m["comp"] != "test" || m["n"] != float64(3) {
		t.Fatalf("unexpected log line: %v", m)
	}
	if m["err"] != "boom" {
		t.Fatalf("err field = %v, want boom", m["err"])
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("ignored")
}

func TestCronLoggerPairsKeys(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cl := CronLogger(NewWriter(&buf, "debug"))
	cl.Info("skip", "reason", "still running")
	cl.Error(errors.New("bad"), "panic", "job", "tasks")
	out := buf.String()
	if !strings.Contains(out, `"reason":"still running"`) || !strings.Contains(out, `"job":"tasks"`) {
		t.Fatalf("missing kv fields: %s", out)
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	for _, lvl := range []string{"", "debug", "WARN", " info "} {
		if !ValidLevel(lvl) {
			t.Fatalf("ValidLevel(%q) = false", lvl)
		}
	}
	if ValidLevel("loud") {
		t.Fatal("ValidLevel(loud) = true")
	}
}
