// Package board is the HTTP client for the board server. It keeps the
// session cookies, marks every request as a fragment request and captures
// what the page layer needs from a response: status, body, the address after
// redirects and any client-side redirect instruction.
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// ErrNoServer is returned when no server URL is configured.
var ErrNoServer = errors.New("board server url not configured")

const (
	headerHXRequest  = "HX-Request"
	headerHXRedirect = "HX-Redirect"
	headerRequestID  = "X-Request-ID"

	maxBodyBytes = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	CSRFHeader string
	Logger     logrus.FieldLogger
	// Transport overrides the HTTP transport; nil uses the default.
	Transport http.RoundTripper
}

// Response is a completed exchange with the server.
type Response struct {
	Status    int
	Body      string
	Header    http.Header
	FinalURL  *url.URL
	Redirect  string // HX-Redirect target, if any
	RequestID string
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client talks to the board server.
type Client interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string, form url.Values, token string) (*Response, error)
	Patch(ctx context.Context, path string, form url.Values, token string) (*Response, error)
	// Resolve turns a server path into an absolute URL.
	Resolve(path string) (*url.URL, error)
	Cookies() *JarCookies
}

type client struct {
	base       *url.URL
	http       *http.Client
	csrfHeader string
	cookies    *JarCookies
	log        logrus.FieldLogger
}

// NewClient creates a Client with its own cookie jar.
func NewClient(cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNoServer
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("server url %q is not absolute", cfg.BaseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	header := cfg.CSRFHeader
	if header == "" {
		header = "X-CSRFToken"
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &client{
		base:       base,
		http:       &http.Client{Jar: jar, Timeout: timeout, Transport: cfg.Transport},
		csrfHeader: header,
		cookies:    &JarCookies{jar: jar, base: base},
		log:        log,
	}, nil
}

func (c *client) Cookies() *JarCookies { return c.cookies }

func (c *client) Resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}
	return c.base.ResolveReference(ref), nil
}

func (c *client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "", false)
}

func (c *client) Post(ctx context.Context, path string, form url.Values, token string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, form, token, true)
}

func (c *client) Patch(ctx context.Context, path string, form url.Values, token string) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, form, token, true)
}

func (c *client) do(ctx context.Context, method, path string, form url.Values, token string, withToken bool) (*Response, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(headerHXRequest, "true")
	req.Header.Set(headerRequestID, requestID)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if withToken {
		// An absent token is still sent; the server decides.
		req.Header.Set(c.csrfHeader, token)
	}

	entry := c.log.WithFields(logrus.Fields{"method": method, "path": path, "request_id": requestID})
	resp, err := c.http.Do(req)
	if err != nil {
		entry.WithError(err).Warn("request failed")
		return nil, fmt.Errorf("sending %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}
	entry.WithField("status", resp.StatusCode).Debug("request completed")

	return &Response{
		Status:    resp.StatusCode,
		Body:      string(raw),
		Header:    resp.Header,
		FinalURL:  resp.Request.URL,
		Redirect:  resp.Header.Get(headerHXRedirect),
		RequestID: requestID,
	}, nil
}
