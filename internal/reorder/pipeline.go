// Package reorder commits drag-and-drop moves to the board server. A move is
// prepared synchronously inside a page turn (empty containers are kept
// consistent, the command is derived from the gesture) and then sent as an
// absolute position update whose outcome becomes exactly one alert.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jeterchen1226/fastapi-trello/internal/board"
	"github.com/jeterchen1226/fastapi-trello/internal/notify"
	"github.com/jeterchen1226/fastapi-trello/internal/view"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// ErrInvalidGesture is returned for a gesture without an item or target.
var ErrInvalidGesture = errors.New("invalid gesture")

// Host is the page the pipeline works on.
type Host interface {
	Turn(fn func(doc *view.Document))
	Token() string
}

// Patcher sends the partial update.
type Patcher interface {
	Patch(ctx context.Context, path string, form url.Values, token string) (*board.Response, error)
}

// Emitter renders the outcome.
type Emitter interface {
	Emit(sig models.FeedbackSignal)
}

// EventLogger records commits and failures.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Pipeline is the reorder commit pipeline.
type Pipeline struct {
	host     Host
	client   Patcher
	emit     Emitter
	markerID string
	log      logrus.FieldLogger
	events   EventLogger

	wg sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithEventLog records reorder.committed and reorder.failed events.
func WithEventLog(e EventLogger) Option {
	return func(p *Pipeline) { p.events = e }
}

// WithMarkerID sets the embedded marker id looked up in failure bodies.
func WithMarkerID(id string) Option {
	return func(p *Pipeline) {
		if id != "" {
			p.markerID = id
		}
	}
}

// New creates a Pipeline.
func New(host Host, client Patcher, emit Emitter, opts ...Option) *Pipeline {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	p := &Pipeline{
		host:     host,
		client:   client,
		emit:     emit,
		markerID: models.DefaultMarkup().MarkerID,
		log:      discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare runs the synchronous part of a commit on doc: it restores the
// emptiness invariant of the source and target containers and derives the
// command. It must run inside a page turn.
func (p *Pipeline) Prepare(doc *view.Document, g models.Gesture) (models.ReorderCommand, error) {
	if g.ItemID == "" || g.TargetContainerID == "" {
		return models.ReorderCommand{}, fmt.Errorf("preparing %s move: %w", g.Kind, ErrInvalidGesture)
	}

	if src, err := doc.Container(g.Kind, g.SourceContainerID); err == nil {
		view.EnsurePlaceholder(src)
	}
	if g.CrossContainer() {
		if dst, err := doc.Container(g.Kind, g.TargetContainerID); err == nil {
			view.EnsurePlaceholder(dst)
		}
	}

	return models.ReorderCommand{
		ID:          uuid.NewString(),
		Kind:        g.Kind,
		ItemID:      g.ItemID,
		Position:    g.NewVisualIndex + 1,
		ContainerID: g.TargetContainerID,
	}, nil
}

type successPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Send issues the partial update for cmd and classifies the outcome. It
// never returns an error: every outcome is a signal.
func (p *Pipeline) Send(ctx context.Context, cmd models.ReorderCommand) models.FeedbackSignal {
	entry := p.log.WithFields(logrus.Fields{
		"gesture_id": cmd.ID,
		"item_id":    cmd.ItemID,
		"kind":       cmd.Kind,
		"position":   cmd.Position,
	})

	form := url.Values{
		"new_index":      {strconv.Itoa(cmd.Position)},
		cmd.ScopeField(): {cmd.ContainerID},
	}
	resp, err := p.client.Patch(ctx, cmd.Path(), form, p.host.Token())
	if err != nil {
		entry.WithError(err).Warn("reorder request failed")
		return p.failed(cmd, notify.MsgServerError, "transport")
	}

	if !resp.OK() {
		reason := notify.ServerErrorText(resp.Body, p.markerID, notify.MsgServerError)
		entry.WithFields(logrus.Fields{"status": resp.Status, "source": reason.Source}).Info("reorder rejected")
		return p.failed(cmd, reason.Text, string(reason.Source))
	}

	var payload successPayload
	if err := sonic.UnmarshalString(resp.Body, &payload); err == nil && payload.Message != "" {
		entry = entry.WithField("server_message", payload.Message)
	}
	entry.Info("reorder committed")
	p.logEvent("reorder.committed", cmd, "")
	return models.FeedbackSignal{Severity: models.SeveritySuccess, Message: SuccessMessage(cmd.Kind), Channel: models.ChannelResponseBody}
}

func (p *Pipeline) failed(cmd models.ReorderCommand, reason, source string) models.FeedbackSignal {
	p.logEvent("reorder.failed", cmd, source)
	return models.FeedbackSignal{Severity: models.SeverityError, Message: FailureMessage(cmd.Kind, reason), Channel: models.ChannelResponseBody}
}

// Commit prepares and sends g, waiting for the outcome.
func (p *Pipeline) Commit(ctx context.Context, g models.Gesture) (models.FeedbackSignal, error) {
	var (
		cmd models.ReorderCommand
		err error
	)
	p.host.Turn(func(doc *view.Document) {
		cmd, err = p.Prepare(doc, g)
	})
	if err != nil {
		return models.FeedbackSignal{}, err
	}
	sig := p.Send(ctx, cmd)
	p.emit.Emit(sig)
	return sig, nil
}

// Dispatch prepares g synchronously and sends it in the background. Several
// dispatches may be in flight at once; their alerts arrive in completion
// order.
func (p *Pipeline) Dispatch(ctx context.Context, g models.Gesture) (models.ReorderCommand, error) {
	var (
		cmd models.ReorderCommand
		err error
	)
	p.host.Turn(func(doc *view.Document) {
		cmd, err = p.Prepare(doc, g)
	})
	if err != nil {
		return cmd, err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.emit.Emit(p.Send(ctx, cmd))
	}()
	return cmd, nil
}

// Wait blocks until every dispatched command has completed.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Move performs the drag of itemID into targetID at the 0-based index and
// commits it. The DOM move and preparation share one turn.
func (p *Pipeline) Move(ctx context.Context, kind models.ItemKind, itemID, targetID string, index int) (models.FeedbackSignal, error) {
	var (
		cmd models.ReorderCommand
		err error
	)
	p.host.Turn(func(doc *view.Document) {
		var g models.Gesture
		g, err = doc.MoveItem(kind, itemID, targetID, index)
		if err != nil {
			return
		}
		cmd, err = p.Prepare(doc, g)
	})
	if err != nil {
		return models.FeedbackSignal{}, fmt.Errorf("moving %s %s: %w", kind, itemID, err)
	}
	sig := p.Send(ctx, cmd)
	p.emit.Emit(sig)
	return sig, nil
}

func (p *Pipeline) logEvent(eventType string, cmd models.ReorderCommand, source string) {
	if p.events == nil {
		return
	}
	data := map[string]any{
		"gesture_id":   cmd.ID,
		"kind":         string(cmd.Kind),
		"item_id":      cmd.ItemID,
		"position":     cmd.Position,
		"container_id": cmd.ContainerID,
	}
	if source != "" {
		data["source"] = source
	}
	_ = p.events.LogEvent(eventType, data)
}
