package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Default fetch settings.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
	DefaultUserAgent   = "cityscrape/1.0 (+https://github.com/CityBaseInc/cityscrape)"
)

// Outcome classifies a fetch.
type Outcome int

const (
	// OutcomeOK means a 2xx response body was read.
	OutcomeOK Outcome = iota
	// OutcomeDead means a transport error or a non-2xx status.
	OutcomeDead
	// OutcomeTimeout means the per-request deadline passed.
	OutcomeTimeout
	// OutcomeCanceled means the crawl context was canceled mid-fetch.
	OutcomeCanceled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDead:
		return "dead"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Fetch call.
type Result struct {
	Outcome Outcome

	// RequestedURL is the URL passed to Fetch.
	RequestedURL string

	// TrueURL is the final URL after redirects. Empty unless the server
	// answered.
	TrueURL string

	StatusCode  int
	ContentType string
	Body        []byte

	// Truncated is true when the body hit the size limit.
	Truncated bool

	// Err is a *DeadLinkError or *TimeoutError for failed outcomes.
	Err error

	Elapsed time.Duration
}

// OK reports whether the fetch produced content.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) Result
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits how many body bytes are read.
func WithMaxBodySize(n int64) Option {
	return func(f *HTTPFetcher) {
		f.maxBodySize = n
	}
}

// WithLimiter sets the per-host politeness limiter.
func WithLimiter(l *HostLimiter) Option {
	return func(f *HTTPFetcher) {
		f.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// HTTPFetcher implements Fetcher with an http.Client.
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	limiter     *HostLimiter
	logger      *slog.Logger
}

// New creates an HTTPFetcher. A nil client gets NewHTTPClient defaults.
func New(client *http.Client, opts ...Option) *HTTPFetcher {
	if client == nil {
		client, _ = NewHTTPClient(ClientOptions{}) //nolint:errcheck // no proxy, cannot fail
	}
	f := &HTTPFetcher{
		client:      client,
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues a GET for rawURL without authentication beyond configured
// cookies and headers.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) Result {
	start := time.Now()
	res := Result{RequestedURL: rawURL}
	finish := func(r Result) Result {
		r.Elapsed = time.Since(start)
		f.logger.Debug("fetched",
			"url", rawURL,
			"true_url", r.TrueURL,
			"outcome", r.Outcome.String(),
			"status", r.StatusCode,
			"elapsed", r.Elapsed)
		return r
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		res.Outcome = OutcomeDead
		res.Err = &DeadLinkError{URL: rawURL, Err: err}
		return finish(res)
	}

	if err := f.limiter.Wait(ctx, u.Hostname()); err != nil {
		res.Outcome = OutcomeCanceled
		res.Err = err
		return finish(res)
	}

	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		res.Outcome = OutcomeDead
		res.Err = &DeadLinkError{URL: rawURL, Err: err}
		return finish(res)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return finish(f.classifyError(ctx, res, err))
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	res.TrueURL = rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		res.TrueURL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for keep-alive
		res.Outcome = OutcomeDead
		res.Err = &DeadLinkError{URL: rawURL, StatusCode: resp.StatusCode}
		return finish(res)
	}

	body, truncated, err := f.readBody(resp)
	if err != nil {
		return finish(f.classifyError(ctx, res, err))
	}

	res.Outcome = OutcomeOK
	res.Body = body
	res.Truncated = truncated
	return finish(res)
}

// classifyError maps a transport or body error to an outcome. A canceled
// parent context wins over the per-request deadline.
func (f *HTTPFetcher) classifyError(ctx context.Context, res Result, err error) Result {
	switch {
	case ctx.Err() != nil:
		res.Outcome = OutcomeCanceled
		res.Err = ctx.Err()
	case isTimeout(err):
		res.Outcome = OutcomeTimeout
		res.Err = &TimeoutError{URL: res.RequestedURL, Err: err}
	default:
		res.Outcome = OutcomeDead
		res.Err = &DeadLinkError{URL: res.RequestedURL, StatusCode: res.StatusCode, Err: err}
	}
	return res
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, bool, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	limit := f.maxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}
