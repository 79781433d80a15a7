package observability

import (
	"fmt"
	"time"
)

// Metrics holds feedback metrics derived from the event log.
type Metrics struct {
	FeedbackShown    int            `json:"feedback_shown" yaml:"feedback_shown"`
	FeedbackDropped  int            `json:"feedback_dropped" yaml:"feedback_dropped"`
	ShownByChannel   map[string]int `json:"shown_by_channel" yaml:"shown_by_channel"`
	ShownBySeverity  map[string]int `json:"shown_by_severity" yaml:"shown_by_severity"`
	ReorderCommitted int            `json:"reorder_committed" yaml:"reorder_committed"`
	ReorderFailed    int            `json:"reorder_failed" yaml:"reorder_failed"`
	FailuresBySource map[string]int `json:"failures_by_source" yaml:"failures_by_source"`
	ActionsConfirmed int            `json:"actions_confirmed" yaml:"actions_confirmed"`
	ActionsCancelled int            `json:"actions_cancelled" yaml:"actions_cancelled"`
	EventCount       int            `json:"event_count" yaml:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty" yaml:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty" yaml:"newest_event,omitempty"`
}

// ReorderSuccessRate returns committed / (committed + failed), or 1 when no
// reorder has been attempted.
func (m *Metrics) ReorderSuccessRate() float64 {
	total := m.ReorderCommitted + m.ReorderFailed
	if total == 0 {
		return 1
	}
	return float64(m.ReorderCommitted) / float64(total)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		ShownByChannel:   make(map[string]int),
		ShownBySeverity:  make(map[string]int),
		FailuresBySource: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "feedback.shown":
			m.FeedbackShown++
			if ch, ok := event.Data["channel"].(string); ok {
				m.ShownByChannel[ch]++
			}
			if sev, ok := event.Data["severity"].(string); ok {
				m.ShownBySeverity[sev]++
			}
		case "feedback.dropped":
			m.FeedbackDropped++
		case "reorder.committed":
			m.ReorderCommitted++
		case "reorder.failed":
			m.ReorderFailed++
			if src, ok := event.Data["source"].(string); ok {
				m.FailuresBySource[src]++
			}
		case "action.confirmed":
			m.ActionsConfirmed++
		case "action.cancelled":
			m.ActionsCancelled++
		}
	}

	return m, nil
}
