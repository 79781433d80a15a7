package observability

import (
	"testing"
	"time"
)

func writeAll(t *testing.T, log EventLog, events []Event) {
	t.Helper()
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
}

func TestMetricsCalculator_Aggregates(t *testing.T) {
	log := newTestLog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writeAll(t, log, []Event{
		{Time: base, Type: "feedback.shown", Data: map[string]any{"channel": "query-param", "severity": "success"}},
		{Time: base.Add(time.Minute), Type: "feedback.shown", Data: map[string]any{"channel": "embedded-marker", "severity": "error"}},
		{Time: base.Add(2 * time.Minute), Type: "feedback.dropped"},
		{Time: base.Add(3 * time.Minute), Type: "reorder.committed"},
		{Time: base.Add(4 * time.Minute), Type: "reorder.failed", Data: map[string]any{"source": "transport"}},
		{Time: base.Add(5 * time.Minute), Type: "reorder.failed", Data: map[string]any{"source": "text"}},
		{Time: base.Add(6 * time.Minute), Type: "action.confirmed"},
		{Time: base.Add(7 * time.Minute), Type: "action.cancelled"},
	})

	m, err := NewMetricsCalculator(log).Calculate(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}

	if m.EventCount != 8 {
		t.Errorf("expected 8 events, got %d", m.EventCount)
	}
	if m.FeedbackShown != 2 || m.FeedbackDropped != 1 {
		t.Errorf("expected 2 shown and 1 dropped, got %d and %d", m.FeedbackShown, m.FeedbackDropped)
	}
	if m.ShownByChannel["query-param"] != 1 || m.ShownByChannel["embedded-marker"] != 1 {
		t.Errorf("unexpected channel counts: %v", m.ShownByChannel)
	}
	if m.ShownBySeverity["error"] != 1 {
		t.Errorf("expected 1 error shown, got %d", m.ShownBySeverity["error"])
	}
	if m.ReorderCommitted != 1 || m.ReorderFailed != 2 {
		t.Errorf("expected 1 committed and 2 failed, got %d and %d", m.ReorderCommitted, m.ReorderFailed)
	}
	if m.FailuresBySource["transport"] != 1 || m.FailuresBySource["text"] != 1 {
		t.Errorf("unexpected failure sources: %v", m.FailuresBySource)
	}
	if m.ActionsConfirmed != 1 || m.ActionsCancelled != 1 {
		t.Errorf("expected one confirmed and one cancelled action")
	}
	if m.OldestEvent == nil || !m.OldestEvent.Equal(base) {
		t.Errorf("expected oldest event %v, got %v", base, m.OldestEvent)
	}
	if m.NewestEvent == nil || !m.NewestEvent.Equal(base.Add(7*time.Minute)) {
		t.Errorf("expected newest event at +7m, got %v", m.NewestEvent)
	}
}

func TestMetricsCalculator_SinceExcludesOlder(t *testing.T) {
	log := newTestLog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeAll(t, log, []Event{
		{Time: base.Add(-2 * time.Hour), Type: "reorder.failed"},
		{Time: base, Type: "reorder.committed"},
	})

	m, err := NewMetricsCalculator(log).Calculate(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}
	if m.ReorderFailed != 0 || m.ReorderCommitted != 1 {
		t.Errorf("expected only the recent commit, got %+v", m)
	}
}

func TestMetrics_ReorderSuccessRate(t *testing.T) {
	tests := []struct {
		name              string
		committed, failed int
		want              float64
	}{
		{"no reorders", 0, 0, 1},
		{"all committed", 3, 0, 1},
		{"half", 2, 2, 0.5},
		{"all failed", 0, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Metrics{ReorderCommitted: tt.committed, ReorderFailed: tt.failed}
			if got := m.ReorderSuccessRate(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMetricsCalculator_EmptyLog(t *testing.T) {
	m, err := NewMetricsCalculator(newTestLog(t)).Calculate(time.Time{})
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}
	if m.EventCount != 0 || m.OldestEvent != nil {
		t.Errorf("expected empty metrics, got %+v", m)
	}
}
