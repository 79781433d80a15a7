package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered health condition of the client's session with
// the board server.
type Alert struct {
	ID          string        `json:"id" yaml:"id"`
	Condition   string        `json:"condition" yaml:"condition"`
	Severity    AlertSeverity `json:"severity" yaml:"severity"`
	Message     string        `json:"message" yaml:"message"`
	TriggeredAt time.Time     `json:"triggered_at" yaml:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	Window             time.Duration `yaml:"window" json:"window"`
	MinReorders        int           `yaml:"min_reorders" json:"min_reorders"`
	MaxReorderFailPct  int           `yaml:"max_reorder_fail_pct" json:"max_reorder_fail_pct"`
	MaxErrorFeedback   int           `yaml:"max_error_feedback" json:"max_error_feedback"`
	MaxDroppedFeedback int           `yaml:"max_dropped_feedback" json:"max_dropped_feedback"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		Window:             time.Hour,
		MinReorders:        4,
		MaxReorderFailPct:  50,
		MaxErrorFeedback:   10,
		MaxDroppedFeedback: 20,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads the events inside the window and checks all alert
// conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	since := now.Add(-ae.thresholds.Window)
	events, err := ae.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkUnreachable(events, now)...)
	alerts = append(alerts, ae.checkReorderFailures(events, now)...)
	alerts = append(alerts, ae.checkErrorFeedback(events, now)...)
	alerts = append(alerts, ae.checkDroppedFeedback(events, now)...)
	return alerts, nil
}

// checkUnreachable fires when the most recent reorder failed at the
// transport level.
func (ae *alertEngine) checkUnreachable(events []Event, now time.Time) []Alert {
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		switch e.Type {
		case "reorder.committed":
			return nil
		case "reorder.failed":
			if src, _ := e.Data["source"].(string); src == "transport" {
				return []Alert{{
					ID:          "server-unreachable",
					Condition:   "server_unreachable",
					Severity:    SeverityHigh,
					Message:     "the last reorder could not reach the board server",
					TriggeredAt: now,
				}}
			}
			return nil
		}
	}
	return nil
}

// checkReorderFailures fires when too large a share of reorders failed.
func (ae *alertEngine) checkReorderFailures(events []Event, now time.Time) []Alert {
	var ok, failed int
	for _, e := range events {
		switch e.Type {
		case "reorder.committed":
			ok++
		case "reorder.failed":
			failed++
		}
	}
	total := ok + failed
	if total < ae.thresholds.MinReorders || total == 0 {
		return nil
	}
	pct := failed * 100 / total
	if pct <= ae.thresholds.MaxReorderFailPct {
		return nil
	}
	return []Alert{{
		ID:          "reorder-failure-rate",
		Condition:   "reorder_failure_rate",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d%% of %d reorders failed within %s", pct, total, ae.thresholds.Window),
		TriggeredAt: now,
	}}
}

// checkErrorFeedback fires when many error alerts were shown.
func (ae *alertEngine) checkErrorFeedback(events []Event, now time.Time) []Alert {
	count := 0
	for _, e := range events {
		if e.Type != "feedback.shown" {
			continue
		}
		if sev, _ := e.Data["severity"].(string); sev == "error" {
			count++
		}
	}
	if count <= ae.thresholds.MaxErrorFeedback {
		return nil
	}
	return []Alert{{
		ID:          "error-feedback",
		Condition:   "error_feedback_burst",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d error alerts shown within %s, exceeding %d", count, ae.thresholds.Window, ae.thresholds.MaxErrorFeedback),
		TriggeredAt: now,
	}}
}

// checkDroppedFeedback fires when the first-signal policy suppressed many
// messages.
func (ae *alertEngine) checkDroppedFeedback(events []Event, now time.Time) []Alert {
	count := 0
	for _, e := range events {
		if e.Type == "feedback.dropped" {
			count++
		}
	}
	if count <= ae.thresholds.MaxDroppedFeedback {
		return nil
	}
	return []Alert{{
		ID:          "dropped-feedback",
		Condition:   "feedback_dropped",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d feedback messages suppressed by policy within %s", count, ae.thresholds.Window),
		TriggeredAt: now,
	}}
}
