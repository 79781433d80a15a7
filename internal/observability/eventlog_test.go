package observability

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log := newTestLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []Event{
		{
			Time:    now,
			Level:   "INFO",
			Type:    "feedback.shown",
			Message: "任務位置已更新",
			Data:    map[string]any{"channel": "response-body", "severity": "success"},
		},
		{
			Time:    now.Add(time.Second),
			Level:   "ERROR",
			Type:    "reorder.failed",
			Message: "更新任務位置失敗：lane not found",
			Data:    map[string]any{"source": "text", "item_id": "103"},
		},
	}

	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Type != "feedback.shown" {
		t.Errorf("expected type feedback.shown, got %s", result[0].Type)
	}
	if result[0].Message != "任務位置已更新" {
		t.Errorf("expected message to round trip, got %q", result[0].Message)
	}
	if result[1].Data["source"] != "text" {
		t.Errorf("expected source text, got %v", result[1].Data["source"])
	}
}

func TestEventLog_Filters(t *testing.T) {
	log := newTestLog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	types := []string{"feedback.shown", "reorder.committed", "reorder.failed", "reorder.committed"}
	for i, typ := range types {
		level := "INFO"
		if typ == "reorder.failed" {
			level = "ERROR"
		}
		if err := log.Write(Event{Time: base.Add(time.Duration(i) * time.Hour), Level: level, Type: typ}); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	since := base.Add(90 * time.Minute)
	until := base.Add(150 * time.Minute)
	tests := []struct {
		name   string
		filter EventFilter
		want   int
	}{
		{"no filter", EventFilter{}, 4},
		{"by type", EventFilter{Type: "reorder.committed"}, 2},
		{"by level", EventFilter{Level: "ERROR"}, 1},
		{"since", EventFilter{Since: &since}, 2},
		{"until", EventFilter{Until: &until}, 3},
		{"window", EventFilter{Since: &since, Until: &until}, 1},
		{"limit keeps newest", EventFilter{Limit: 1}, 1},
		{"limit above count", EventFilter{Limit: 10}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.Read(tt.filter)
			if err != nil {
				t.Fatalf("reading events: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d events, got %d", tt.want, len(got))
			}
		})
	}

	last, _ := log.Read(EventFilter{Limit: 1})
	if len(last) == 1 && !last[0].Time.Equal(base.Add(3*time.Hour)) {
		t.Errorf("expected the newest event, got %v", last[0].Time)
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := "{\"time\":\"2026-03-01T12:00:00Z\",\"level\":\"INFO\",\"type\":\"feedback.shown\",\"msg\":\"ok\"}\nnot json\n\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 valid event, got %d", len(got))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = log.Write(Event{Time: time.Now().UTC(), Level: "INFO", Type: "reorder.committed"})
		}()
	}
	wg.Wait()

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("expected 20 events, got %d", len(got))
	}
}

func TestRecorder_Levels(t *testing.T) {
	log := newTestLog(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &Recorder{Log: log, Now: func() time.Time { return fixed }}

	calls := []struct {
		typ  string
		data map[string]any
		want string
	}{
		{"feedback.shown", map[string]any{"severity": "success", "message": "歡迎回來，Ada。"}, "INFO"},
		{"feedback.shown", map[string]any{"severity": "error", "message": "驗證失敗"}, "ERROR"},
		{"feedback.dropped", map[string]any{"message": "x"}, "WARN"},
		{"reorder.failed", map[string]any{"source": "transport"}, "ERROR"},
		{"action.cancelled", nil, "WARN"},
		{"action.confirmed", nil, "INFO"},
	}
	for _, c := range calls {
		if err := rec.LogEvent(c.typ, c.data); err != nil {
			t.Fatalf("logging %s: %v", c.typ, err)
		}
	}

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(got) != len(calls) {
		t.Fatalf("expected %d events, got %d", len(calls), len(got))
	}
	for i, c := range calls {
		if got[i].Level != c.want {
			t.Errorf("event %d (%s): expected level %s, got %s", i, c.typ, c.want, got[i].Level)
		}
		if !got[i].Time.Equal(fixed) {
			t.Errorf("event %d: expected fixed time, got %v", i, got[i].Time)
		}
	}
	if got[0].Message != "歡迎回來，Ada。" {
		t.Errorf("expected message from data, got %q", got[0].Message)
	}
	if got[4].Message != "action cancelled" {
		t.Errorf("expected message derived from type, got %q", got[4].Message)
	}
}

func TestEventLog_WriteDerivesMissingFields(t *testing.T) {
	log := newTestLog(t)

	if err := log.Write(Event{Type: "reorder.failed", Data: map[string]any{"source": "text"}}); err != nil {
		t.Fatalf("writing event: %v", err)
	}
	if err := log.Write(Event{Level: LevelWarn, Type: "feedback.shown", Message: "kept", Data: map[string]any{"severity": "error", "message": "ignored"}}); err != nil {
		t.Fatalf("writing event: %v", err)
	}

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Level != LevelError || got[0].Message != "reorder failed" || got[0].Time.IsZero() {
		t.Errorf("derived event = %+v", got[0])
	}
	if got[1].Level != LevelWarn || got[1].Message != "kept" {
		t.Errorf("explicit fields overwritten: %+v", got[1])
	}
}

func TestEventLog_LongLine(t *testing.T) {
	log := newTestLog(t)
	long := strings.Repeat("錯", 40*1024)

	if err := log.Write(Event{Type: "reorder.failed", Message: long}); err != nil {
		t.Fatalf("writing event: %v", err)
	}
	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(got) != 1 || got[0].Message != long {
		t.Fatalf("long event did not round trip (got %d events)", len(got))
	}
}

func TestRecorder_NilLogIsNoop(t *testing.T) {
	var rec *Recorder
	if err := rec.LogEvent("feedback.shown", nil); err != nil {
		t.Errorf("expected nil recorder to be a no-op, got %v", err)
	}
	if err := (&Recorder{}).LogEvent("feedback.shown", nil); err != nil {
		t.Errorf("expected empty recorder to be a no-op, got %v", err)
	}
}
