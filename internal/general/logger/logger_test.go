package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var out []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("log line is not JSON: %q (%v)", line, err)
		}
		out = append(out, e)
	}
	return out
}

func TestLoggerCarriesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("tracking-service", &buf)

	ctx := log.WithRequestID(context.Background(), "req-1")
	ctx = log.WithSessionID(ctx, "sess-1")
	log.Info(ctx, "session_started", " started ", map[string]any{"employee_id": "E1"})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 line, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != "INFO" || e.Service != "tracking-service" || e.Action != "session_started" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.RequestID != "req-1" || e.SessionID != "sess-1" {
		t.Fatalf("context ids not propagated: %+v", e)
	}
	if e.Message != "started" {
		t.Fatalf("message not trimmed: %q", e.Message)
	}
}

func TestLoggerErrorAttachesStack(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("tracking-service", &buf)

	log.Error(context.Background(), "", "boom", errors.New("db down"), nil)

	e := decodeLines(t, &buf)[0]
	if e.Action != "unspecified" {
		t.Fatalf("empty action must default, got %q", e.Action)
	}
	if e.Error == nil || e.Error.Msg != "db down" || e.Error.Stack == "" {
		t.Fatalf("error object missing: %+v", e.Error)
	}
}

func TestLoggerFallsBackOnUnencodableDetails(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("tracking-service", &buf)

	log.Debug(context.Background(), "odd_details", "details cannot be encoded", map[string]any{"ch": make(chan int)})

	e := decodeLines(t, &buf)[0]
	if e.Details != nil || e.Action != "odd_details" {
		t.Fatalf("expected details to be dropped, got %+v", e)
	}
}
