// Package page models the host page of the board client: the current
// address, the parsed document and the session. Every change to the document
// happens inside a turn, so handler work never interleaves with a swap.
package page

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jeterchen1226/fastapi-trello/internal/board"
	"github.com/jeterchen1226/fastapi-trello/internal/notify"
	"github.com/jeterchen1226/fastapi-trello/internal/view"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

const (
	loginPath  = "/users/login"
	logoutPath = "/users/logout"

	// maxRedirects bounds chains of HX-Redirect instructions.
	maxRedirects = 5
)

// Page is the client's view of one browser tab.
type Page struct {
	mu      sync.Mutex
	client  board.Client
	arbiter *notify.Arbiter
	markup  models.MarkupConfig
	log     logrus.FieldLogger

	loc *url.URL
	doc *view.Document
}

// New creates an empty page. Call Navigate to load something.
func New(client board.Client, arbiter *notify.Arbiter, markup models.MarkupConfig, log logrus.FieldLogger) *Page {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	doc, _ := view.ParseString("")
	return &Page{client: client, arbiter: arbiter, markup: markup, log: log, doc: doc}
}

// Turn runs fn with exclusive access to the document.
func (p *Page) Turn(fn func(doc *view.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// Token returns the anti-forgery token of the current document, or "" when
// the page carries none.
func (p *Page) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	tok, _ := p.doc.MetaContent(p.markup.CSRFMetaName)
	return tok
}

// Location returns a copy of the current address.
func (p *Page) Location() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loc == nil {
		return nil
	}
	u := *p.loc
	return &u
}

// Board projects the current document.
func (p *Page) Board() models.Board {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Board()
}

// HTML serializes the current document.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.HTML()
}

// Client returns the underlying HTTP client.
func (p *Page) Client() board.Client { return p.client }

// URL and ReplaceURL make the page the arbiter's location. They are only
// called while the page lock is held.
func (p *Page) URL() *url.URL { return p.loc }

func (p *Page) ReplaceURL(u *url.URL) { p.loc = u }

func (p *Page) scope() notify.Scope {
	return notify.Scope{Doc: p.doc, Location: p, Cookies: p.client.Cookies()}
}

// Navigate loads path as a full page and fires the load trigger.
func (p *Page) Navigate(ctx context.Context, path string) ([]models.FeedbackSignal, error) {
	resp, err := p.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return p.load(ctx, resp, 0)
}

// Reload navigates to the current address.
func (p *Page) Reload(ctx context.Context) ([]models.FeedbackSignal, error) {
	loc := p.Location()
	if loc == nil {
		return nil, fmt.Errorf("reloading: no page loaded")
	}
	return p.Navigate(ctx, loc.RequestURI())
}

// Login submits the credentials and loads whatever page the server
// redirects to.
func (p *Page) Login(ctx context.Context, username, password string) ([]models.FeedbackSignal, error) {
	form := url.Values{"username": {username}, "password": {password}}
	resp, err := p.client.Post(ctx, loginPath, form, p.Token())
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return p.load(ctx, resp, 0)
}

// Logout ends the session.
func (p *Page) Logout(ctx context.Context) ([]models.FeedbackSignal, error) {
	return p.Navigate(ctx, logoutPath)
}

func (p *Page) load(ctx context.Context, resp *board.Response, depth int) ([]models.FeedbackSignal, error) {
	if resp.Redirect != "" {
		if depth >= maxRedirects {
			return nil, fmt.Errorf("following redirects: too many hops")
		}
		next, err := p.client.Get(ctx, resp.Redirect)
		if err != nil {
			return nil, fmt.Errorf("following redirect to %s: %w", resp.Redirect, err)
		}
		return p.load(ctx, next, depth+1)
	}

	doc, err := view.ParseString(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	p.loc = resp.FinalURL
	p.doc.EnsurePlaceholders(models.KindTask)
	p.doc.EnsurePlaceholders(models.KindLane)
	p.log.WithFields(logrus.Fields{"path": p.loc.Path, "status": resp.Status}).Debug("page loaded")

	signals := p.arbiter.Run(models.TriggerLoad, p.scope())
	// The response-body channel fires only if the page carried no error itself.
	if !resp.OK() && !hasError(signals) {
		signals = append(signals, p.arbiter.RequestFailed(resp.Body))
	}
	return signals, nil
}

func hasError(signals []models.FeedbackSignal) bool {
	for _, s := range signals {
		if s.Severity == models.SeverityError {
			return true
		}
	}
	return false
}

// Submit sends a fragment request the way an hx-post/hx-patch attribute
// would and applies the response to the swap target.
func (p *Page) Submit(ctx context.Context, method, path string, form url.Values, target string) ([]models.FeedbackSignal, error) {
	token := p.Token()
	var (
		resp *board.Response
		err  error
	)
	switch method {
	case "POST":
		resp, err = p.client.Post(ctx, path, form, token)
	case "PATCH":
		resp, err = p.client.Patch(ctx, path, form, token)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		return nil, fmt.Errorf("submitting %s %s: %w", method, path, err)
	}
	return p.Apply(ctx, resp, target)
}

// Apply handles a completed fragment request: a redirect instruction
// navigates, a failure renders one error, a success swaps target (default
// swap target when empty) and fires the swap trigger.
func (p *Page) Apply(ctx context.Context, resp *board.Response, target string) ([]models.FeedbackSignal, error) {
	if resp.Redirect != "" {
		return p.load(ctx, resp, 0)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !resp.OK() {
		p.log.WithFields(logrus.Fields{"status": resp.Status, "request_id": resp.RequestID}).Info("request failed")
		return []models.FeedbackSignal{p.arbiter.RequestFailed(resp.Body)}, nil
	}

	if target == "" {
		target = p.markup.SwapTarget
	}
	trigger := models.TriggerRequest
	if p.doc.Contains(target) {
		if err := p.doc.SwapInner(target, resp.Body); err != nil {
			return nil, fmt.Errorf("swapping #%s: %w", target, err)
		}
		p.doc.EnsurePlaceholders(models.KindTask)
		p.doc.EnsurePlaceholders(models.KindLane)
		trigger = models.TriggerSwap
	}
	return p.arbiter.Run(trigger, p.scope()), nil
}
