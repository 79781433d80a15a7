package notify

import (
	"sync"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// Alert is what the rendering primitive displays: a title, a body, a
// severity and, for prompts, callbacks run on confirmation or cancellation.
type Alert struct {
	ID       int
	Title    string
	Body     string
	Severity models.Severity
	Channel  models.ChannelKind
	Confirm  func()
	Cancel   func()
}

// IsPrompt reports whether the alert asks for confirmation.
func (a Alert) IsPrompt() bool { return a.Confirm != nil }

// Surface displays alerts.
type Surface interface {
	Show(a Alert)
}

// SignalAlert maps a feedback signal onto an alert.
func SignalAlert(sig models.FeedbackSignal) Alert {
	title := TitleSuccess
	if sig.Severity == models.SeverityError {
		title = TitleError
	}
	return Alert{Title: title, Body: sig.Message, Severity: sig.Severity, Channel: sig.Channel}
}

// ConfirmAlert builds a confirmation prompt.
func ConfirmAlert(title, text string, onConfirm func()) Alert {
	return Alert{Title: title, Body: text, Confirm: onConfirm}
}

// Slot is a single-slot alert surface: one alert is displayed at a time and
// later alerts wait in FIFO order instead of clobbering it. Safe for
// concurrent use.
type Slot struct {
	mu       sync.Mutex
	queue    []Alert
	seq      int
	onChange func()
}

// NewSlot creates an empty Slot.
func NewSlot() *Slot {
	return &Slot{}
}

// OnChange registers fn to run (outside the lock) after every enqueue.
func (s *Slot) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Show enqueues an alert.
func (s *Slot) Show(a Alert) {
	s.mu.Lock()
	s.seq++
	a.ID = s.seq
	s.queue = append(s.queue, a)
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Current returns the displayed alert.
func (s *Slot) Current() (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Alert{}, false
	}
	return s.queue[0], true
}

// Pending returns the number of alerts displayed or waiting.
func (s *Slot) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Dismiss closes the displayed alert. For a prompt, the confirm or cancel
// callback runs after the slot has advanced.
func (s *Slot) Dismiss(confirmed bool) (Alert, bool) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return Alert{}, false
	}
	a := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	switch {
	case confirmed && a.Confirm != nil:
		a.Confirm()
	case !confirmed && a.Cancel != nil:
		a.Cancel()
	}
	return a, true
}

// Drain removes and returns every queued alert without running callbacks.
func (s *Slot) Drain() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}
