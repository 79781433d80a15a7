package models

// Severity is the user-visible weight of a feedback message.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// ChannelKind names the transport a feedback message arrived through.
type ChannelKind string

const (
	ChannelQueryParam     ChannelKind = "query-param"
	ChannelCookie         ChannelKind = "cookie"
	ChannelEmbeddedMarker ChannelKind = "embedded-marker"
	ChannelResponseBody   ChannelKind = "response-body"
)

// FeedbackSignal is one message the server (or the reorder pipeline) wants
// shown to the user.
type FeedbackSignal struct {
	Severity Severity    `yaml:"severity" json:"severity"`
	Message  string      `yaml:"message" json:"message"`
	Channel  ChannelKind `yaml:"channel" json:"channel"`
}

// Trigger names the event that caused the arbiter to run.
type Trigger string

const (
	TriggerLoad    Trigger = "load"
	TriggerSwap    Trigger = "swap"
	TriggerRequest Trigger = "request"
)
