// Package notify unifies the feedback channels of the board server (query
// parameters, flash cookie, embedded marker, failed response bodies) into
// alerts on a single surface, erasing each channel after it is read.
package notify

import (
	"io"
	"sync"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
	"github.com/sirupsen/logrus"
)

// EventLogger is the subset of the observability event log the arbiter
// needs.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Notifier mirrors error feedback to an external sink.
type Notifier interface {
	Notify(signals []models.FeedbackSignal) error
}

// Arbiter evaluates the feedback probes on each trigger and renders the
// signals they yield.
type Arbiter struct {
	probes   []Probe
	policy   models.ArbiterPolicy
	surface  Surface
	markerID string
	log      logrus.FieldLogger
	events   EventLogger
	notifier Notifier
	mirrors  sync.WaitGroup
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithPolicy sets how many signals one run renders.
func WithPolicy(p models.ArbiterPolicy) Option {
	return func(a *Arbiter) {
		if p != "" {
			a.policy = p
		}
	}
}

// WithProbes replaces the default probe list.
func WithProbes(probes ...Probe) Option {
	return func(a *Arbiter) { a.probes = probes }
}

// WithLogger sets the structured logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Arbiter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithEventLog records every rendered or suppressed signal.
func WithEventLog(e EventLogger) Option {
	return func(a *Arbiter) { a.events = e }
}

// WithNotifier mirrors error signals to n.
func WithNotifier(n Notifier) Option {
	return func(a *Arbiter) { a.notifier = n }
}

// NewArbiter creates an Arbiter rendering onto surface.
func NewArbiter(surface Surface, markup models.MarkupConfig, opts ...Option) *Arbiter {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	a := &Arbiter{
		probes:   DefaultProbes(markup),
		policy:   models.PolicyAll,
		surface:  surface,
		markerID: markup.MarkerID,
		log:      discard,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run evaluates every probe in precedence order. Every probe is read (and
// therefore erased) on every run; under PolicyFirst only the first signal
// is rendered.
func (a *Arbiter) Run(trigger models.Trigger, s Scope) []models.FeedbackSignal {
	var rendered []models.FeedbackSignal
	for _, p := range a.probes {
		sig, ok := p.Read(s)
		if !ok {
			continue
		}
		if a.policy == models.PolicyFirst && len(rendered) > 0 {
			a.log.WithFields(logrus.Fields{"channel": sig.Channel, "trigger": trigger}).Debug("feedback suppressed by policy")
			a.logEvent("feedback.dropped", sig, trigger)
			continue
		}
		a.render(sig, trigger)
		rendered = append(rendered, sig)
	}
	return rendered
}

// RequestFailed handles the response-body channel for a request that failed
// at the HTTP level and renders exactly one error.
func (a *Arbiter) RequestFailed(body string) models.FeedbackSignal {
	sig := ResponseSignal(body, a.markerID)
	a.render(sig, models.TriggerRequest)
	return sig
}

// Emit renders a signal produced outside the channel probes.
func (a *Arbiter) Emit(sig models.FeedbackSignal) {
	a.render(sig, models.TriggerRequest)
}

func (a *Arbiter) render(sig models.FeedbackSignal, trigger models.Trigger) {
	a.log.WithFields(logrus.Fields{
		"channel":  sig.Channel,
		"severity": sig.Severity,
		"trigger":  trigger,
	}).Info("feedback")
	if a.surface != nil {
		a.surface.Show(SignalAlert(sig))
	}
	a.logEvent("feedback.shown", sig, trigger)

	if a.notifier != nil && sig.Severity == models.SeverityError {
		n := a.notifier
		a.mirrors.Add(1)
		go func() {
			defer a.mirrors.Done()
			if err := n.Notify([]models.FeedbackSignal{sig}); err != nil {
				a.log.WithError(err).Warn("mirroring feedback")
			}
		}()
	}
}

// Wait blocks until every mirrored error has been handed to the notifier.
func (a *Arbiter) Wait() {
	a.mirrors.Wait()
}

func (a *Arbiter) logEvent(eventType string, sig models.FeedbackSignal, trigger models.Trigger) {
	if a.events == nil {
		return
	}
	_ = a.events.LogEvent(eventType, map[string]any{
		"channel":  string(sig.Channel),
		"severity": string(sig.Severity),
		"message":  sig.Message,
		"trigger":  string(trigger),
	})
}
