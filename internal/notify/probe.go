package notify

import (
	"net/url"
	"strings"

	"github.com/jeterchen1226/fastapi-trello/internal/view"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// Location is the page address the query channel reads and rewrites.
type Location interface {
	URL() *url.URL
	// ReplaceURL swaps the current address without adding a history entry.
	ReplaceURL(u *url.URL)
}

// CookieStore is the client-side cookie view the flash channel reads.
type CookieStore interface {
	Cookie(name string) (string, bool)
	Expire(name string)
}

// Scope is everything a probe may read during one arbiter run. Any field may
// be nil; probes whose source is absent report nothing.
type Scope struct {
	Doc      *view.Document
	Location Location
	Cookies  CookieStore
}

// Probe inspects one feedback channel, erases its residue and yields at most
// one signal.
type Probe interface {
	Channel() models.ChannelKind
	Read(s Scope) (models.FeedbackSignal, bool)
}

// --- Query parameters ---

type queryProbe struct{}

// NewQueryProbe returns the probe for the login/logout/register query keys.
func NewQueryProbe() Probe { return queryProbe{} }

func (queryProbe) Channel() models.ChannelKind { return models.ChannelQueryParam }

var queryKeys = []string{"login", "logout", "register", "name"}

func (queryProbe) Read(s Scope) (models.FeedbackSignal, bool) {
	if s.Location == nil {
		return models.FeedbackSignal{}, false
	}
	u := s.Location.URL()
	if u == nil {
		return models.FeedbackSignal{}, false
	}
	q := u.Query()
	if !hasAnyKey(q, queryKeys) {
		return models.FeedbackSignal{}, false
	}

	// Erase before returning; the read above is the only consumer.
	stripped := *u
	stripped.RawQuery = ""
	stripped.ForceQuery = false
	s.Location.ReplaceURL(&stripped)

	name := decodeName(q.Get("name"))
	msg := ""
	switch {
	case q.Get("login") == "success" && name != "":
		msg = LoginMessage(name)
	case q.Get("logout") == "success":
		msg = MsgLogout
	case q.Get("register") == "success" && name != "":
		msg = RegisterMessage(name)
	default:
		return models.FeedbackSignal{}, false
	}
	return models.FeedbackSignal{Severity: models.SeveritySuccess, Message: msg, Channel: models.ChannelQueryParam}, true
}

func hasAnyKey(q url.Values, keys []string) bool {
	for _, k := range keys {
		if _, ok := q[k]; ok {
			return true
		}
	}
	return false
}

// decodeName undoes a second level of percent-encoding some redirects apply.
func decodeName(raw string) string {
	if dec, err := url.PathUnescape(raw); err == nil {
		return dec
	}
	return raw
}

// --- Flash cookie ---

type cookieProbe struct {
	name string
}

// NewCookieProbe returns the probe for the flash cookie called name.
func NewCookieProbe(name string) Probe { return cookieProbe{name: name} }

func (cookieProbe) Channel() models.ChannelKind { return models.ChannelCookie }

func (p cookieProbe) Read(s Scope) (models.FeedbackSignal, bool) {
	if s.Cookies == nil {
		return models.FeedbackSignal{}, false
	}
	raw, ok := s.Cookies.Cookie(p.name)
	if !ok {
		return models.FeedbackSignal{}, false
	}
	s.Cookies.Expire(p.name)
	return DecodeFlash(raw)
}

// EncodeFlash renders a flash cookie value "category:percent-encoded".
func EncodeFlash(sev models.Severity, message string) string {
	return string(sev) + ":" + url.PathEscape(message)
}

// DecodeFlash parses a flash cookie value. Malformed values (no colon,
// unknown category, bad escapes, empty message) yield no signal.
func DecodeFlash(raw string) (models.FeedbackSignal, bool) {
	raw = strings.Trim(raw, `"`)
	category, encoded, ok := strings.Cut(raw, ":")
	if !ok {
		return models.FeedbackSignal{}, false
	}
	sev := models.Severity(category)
	if sev != models.SeveritySuccess && sev != models.SeverityError {
		return models.FeedbackSignal{}, false
	}
	msg, err := url.PathUnescape(encoded)
	if err != nil || msg == "" {
		return models.FeedbackSignal{}, false
	}
	return models.FeedbackSignal{Severity: sev, Message: msg, Channel: models.ChannelCookie}, true
}

// --- Embedded marker ---

type markerProbe struct {
	id string
}

// NewMarkerProbe returns the probe for the embedded marker element id.
func NewMarkerProbe(id string) Probe { return markerProbe{id: id} }

func (markerProbe) Channel() models.ChannelKind { return models.ChannelEmbeddedMarker }

func (p markerProbe) Read(s Scope) (models.FeedbackSignal, bool) {
	if s.Doc == nil {
		return models.FeedbackSignal{}, false
	}
	m, ok := s.Doc.TakeMarker(p.id)
	if !ok || m.Message == "" {
		return models.FeedbackSignal{}, false
	}
	return markerSignal(m, models.ChannelEmbeddedMarker), true
}

func markerSignal(m view.Marker, ch models.ChannelKind) models.FeedbackSignal {
	sev := models.SeveritySuccess
	if m.Type == "error" {
		sev = models.SeverityError
	}
	return models.FeedbackSignal{Severity: sev, Message: m.Message, Channel: ch}
}

// --- Error element ---

type errorElementProbe struct {
	id string
}

// NewErrorElementProbe returns the probe for a server-rendered error element
// whose text content is the message.
func NewErrorElementProbe(id string) Probe { return errorElementProbe{id: id} }

func (errorElementProbe) Channel() models.ChannelKind { return models.ChannelEmbeddedMarker }

func (p errorElementProbe) Read(s Scope) (models.FeedbackSignal, bool) {
	if s.Doc == nil {
		return models.FeedbackSignal{}, false
	}
	text, ok := s.Doc.TakeText(p.id)
	if !ok || text == "" {
		return models.FeedbackSignal{}, false
	}
	return models.FeedbackSignal{Severity: models.SeverityError, Message: text, Channel: models.ChannelEmbeddedMarker}, true
}

// DefaultProbes returns the probes in precedence order for the given markup.
func DefaultProbes(m models.MarkupConfig) []Probe {
	return []Probe{
		NewQueryProbe(),
		NewCookieProbe(m.FlashCookie),
		NewMarkerProbe(m.MarkerID),
		NewErrorElementProbe(m.ErrorElementID),
	}
}
