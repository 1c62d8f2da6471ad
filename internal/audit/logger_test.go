package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode audit line: %v", err)
		}
		out = append(out, e)
	}
	return out
}

func TestLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	l := NewLogger(path)
	fixed := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return fixed }

	if err := l.Record(Event{Actor: "ana", Action: "cart.add", Target: "cam1", Outcome: OutcomeSuccess, RequestID: "req-1"}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := l.Record(Event{Action: "auth.login", Outcome: OutcomeFailure}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(events))
	}
	if events[0].Actor != "ana" || events[0].Action != "cart.add" || events[0].RequestID != "req-1" {
		t.Fatalf("unexpected audit event content: %+v", events[0])
	}
	if !events[0].At.Equal(fixed) {
		t.Fatalf("expected timestamp %v, got %v", fixed, events[0].At)
	}
	if events[1].Actor != "anonymous" {
		t.Fatalf("expected anonymous actor, got %q", events[1].Actor)
	}
}

func TestLoggerWithoutPathIsNoop(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Record(Event{Action: "x"}); err != nil {
		t.Fatalf("nil logger Record() error: %v", err)
	}
	if err := NewLogger("").Record(Event{Action: "x"}); err != nil {
		t.Fatalf("empty path Record() error: %v", err)
	}
}
