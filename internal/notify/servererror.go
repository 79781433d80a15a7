package notify

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/jeterchen1226/fastapi-trello/internal/view"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// ErrorSource says which step of the fallback chain produced a message.
type ErrorSource string

const (
	SourceMarker   ErrorSource = "marker"
	SourceDetail   ErrorSource = "detail"
	SourceText     ErrorSource = "text"
	SourceFallback ErrorSource = "fallback"
)

// ErrorMessage is the outcome of ParseServerError.
type ErrorMessage struct {
	Text   string
	Source ErrorSource
}

type errorPayload struct {
	Detail any `json:"detail"`
}

// ParseServerError turns a failed response body into exactly one error
// message using the chain: error marker, JSON "detail" string, fixed
// fallback.
func ParseServerError(body, markerID string) ErrorMessage {
	if m, ok := view.FindMarker(body, markerID); ok && m.Type == "error" && m.Message != "" {
		return ErrorMessage{Text: m.Message, Source: SourceMarker}
	}
	if detail, ok := jsonDetail(body); ok {
		return ErrorMessage{Text: detail, Source: SourceDetail}
	}
	return ErrorMessage{Text: MsgOperationKO, Source: SourceFallback}
}

// ServerErrorText is ParseServerError for callers that show failed bodies
// verbatim. A marker or string detail still wins; any other non-empty body,
// JSON included, is the message. Only a blank body falls back.
func ServerErrorText(body, markerID, fallback string) ErrorMessage {
	msg := ParseServerError(body, markerID)
	if msg.Source != SourceFallback {
		return msg
	}
	if text := strings.TrimSpace(body); text != "" {
		return ErrorMessage{Text: text, Source: SourceText}
	}
	return ErrorMessage{Text: fallback, Source: SourceFallback}
}

func decodePayload(body string) (errorPayload, bool) {
	var p errorPayload
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") {
		return p, false
	}
	if err := sonic.UnmarshalString(trimmed, &p); err != nil {
		return p, false
	}
	return p, true
}

func jsonDetail(body string) (string, bool) {
	p, ok := decodePayload(body)
	if !ok {
		return "", false
	}
	s, ok := p.Detail.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ResponseSignal is the response-body channel: one error signal for a failed
// request.
func ResponseSignal(body, markerID string) models.FeedbackSignal {
	msg := ParseServerError(body, markerID)
	return models.FeedbackSignal{Severity: models.SeverityError, Message: msg.Text, Channel: models.ChannelResponseBody}
}
