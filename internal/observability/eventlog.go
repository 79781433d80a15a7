package observability

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Event is one line of the event file. Type is dotted, e.g. reorder.failed.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Type    string         `json:"type"`
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter selects events on Read. Zero fields match everything.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
	// Limit keeps only the newest Limit matches when positive.
	Limit int
}

// EventLog stores events. Write fills Time, Level and Message when empty.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// Levels derived for events written without one.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// maxEventLine bounds a single JSONL record; error bodies can be long.
const maxEventLine = 1 << 20

// complete fills the fields a caller may leave empty: the level and message
// follow from the type and data, the time from now.
func (e Event) complete(now func() time.Time) Event {
	if e.Time.IsZero() {
		e.Time = now().UTC()
	}
	if e.Level == "" {
		e.Level = eventLevel(e.Type, e.Data)
	}
	if e.Message == "" {
		e.Message = eventMessage(e.Type, e.Data)
	}
	return e
}

func (f EventFilter) matches(e Event) bool {
	switch {
	case f.Since != nil && e.Time.Before(*f.Since):
		return false
	case f.Until != nil && e.Time.After(*f.Until):
		return false
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.Level != "" && e.Level != f.Level:
		return false
	}
	return true
}

// jsonlEventLog appends one JSON object per line and re-reads the file on
// every query.
type jsonlEventLog struct {
	mu   sync.Mutex
	path string
	out  *os.File
	now  func() time.Time
}

// NewJSONLEventLog opens (creating if needed) the event file at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, out: f, now: time.Now}, nil
}

func (l *jsonlEventLog) Write(event Event) error {
	line, err := sonic.Marshal(event.complete(l.now))
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending %s event: %w", event.Type, err)
	}
	return nil
}

// Read returns the events matching filter, oldest first. Lines that do not
// decode are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var matched []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for sc.Scan() {
		var e Event
		if len(sc.Bytes()) == 0 || sonic.Unmarshal(sc.Bytes(), &e) != nil {
			continue
		}
		if filter.matches(e) {
			matched = append(matched, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}

	if n := filter.Limit; n > 0 && len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.out.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// Recorder adapts an EventLog to the LogEvent(eventType, data) shape the
// feedback, reorder and action services log through.
type Recorder struct {
	Log EventLog
	Now func() time.Time
}

func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	if r == nil || r.Log == nil {
		return nil
	}
	e := Event{Type: eventType, Data: data}
	if r.Now != nil {
		e.Time = r.Now().UTC()
	}
	return r.Log.Write(e)
}

func eventLevel(eventType string, data map[string]any) string {
	switch {
	case strings.HasSuffix(eventType, ".failed"):
		return LevelError
	case strings.HasSuffix(eventType, ".dropped"), strings.HasSuffix(eventType, ".cancelled"):
		return LevelWarn
	}
	if sev, _ := data["severity"].(string); sev == "error" {
		return LevelError
	}
	return LevelInfo
}

func eventMessage(eventType string, data map[string]any) string {
	if msg, ok := data["message"].(string); ok && msg != "" {
		return msg
	}
	return strings.ReplaceAll(eventType, ".", " ")
}
