package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// UserAgent identifies outbound page fetches.
const UserAgent = "Orbit-Fetch/1.0"

// ErrFetch matches every *Error.
var ErrFetch = errors.New("fetch failed")

// Error describes a failed fetch.
type Error struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrFetch }

// upstream reports whether the failure says something about the remote's health.
func (e *Error) upstream() bool {
	return e.StatusCode >= 500 || e.Reason == "transport"
}

// Page is a fetched document decoded to UTF-8.
type Page struct {
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	Charset     string    `json:"charset"`
	HTML        string    `json:"-"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	MaxBytes          int64
	RequestsPerSecond float64
	Retries           int
	Logger            *zap.Logger
	OnBreakerChange   func(name string, from, to resilience.State)
}

// Client fetches pages with rate limiting, retries and a circuit breaker.
type Client struct {
	Resty    *resty.Client
	Limiter  *rate.Limiter
	Breaker  *resilience.Breaker
	maxBytes int64
	mu       sync.RWMutex
}

// NewClient creates a production-ready fetch client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 5 << 20
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = leveledLogger{log.Sugar()}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Transport = &tracing.Transport{Base: retryClient.HTTPClient.Transport}

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	breaker := resilience.New("http-external", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// External sites vary in reliability
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
		IsSuccessful: func(err error) bool {
			var fe *Error
			if errors.As(err, &fe) {
				return !fe.upstream()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: opts.OnBreakerChange,
	})

	c := &Client{
		Resty:    restyClient,
		Breaker:  breaker,
		maxBytes: opts.MaxBytes,
	}
	c.SetRateLimit(opts.RequestsPerSecond)
	return c
}

// SetRateLimit configures rate limiting (requests per second). Zero disables it.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Fetch downloads rawURL and returns its body as UTF-8 text.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := utils.ValidateURL(rawURL, "url", true); err != nil {
		return nil, err
	}
	if u, _ := url.Parse(rawURL); u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, utils.Invalid("url", "must use http or https")
	}

	c.mu.RLock()
	limiter := c.Limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, &Error{URL: rawURL, Reason: "rate limited", Err: err}
	}

	page, err := resilience.Call(c.Breaker, func() (*Page, error) {
		return c.get(ctx, rawURL)
	})
	if resilience.IsRejection(err) {
		return nil, &Error{URL: rawURL, Reason: "circuit open", Err: err}
	}
	return page, err
}

func (c *Client) get(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := c.Resty.R().SetContext(ctx).SetDoNotParseResponse(true).Get(rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Reason: "transport", Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode(), Reason: http.StatusText(resp.StatusCode())}
	}

	data, err := io.ReadAll(io.LimitReader(body, c.maxBytes+1))
	if err != nil {
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode(), Reason: "transport", Err: err}
	}
	if int64(len(data)) > c.maxBytes {
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode(), Reason: fmt.Sprintf("body exceeds %d bytes", c.maxBytes)}
	}

	contentType := resp.Header().Get("Content-Type")
	if !isText(data, contentType) {
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode(), Reason: "not a text document: " + mimetype.Detect(data).String()}
	}

	text, name := decode(data, contentType)
	final := rawURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL.String()
	}
	return &Page{
		URL:         final,
		StatusCode:  resp.StatusCode(),
		ContentType: contentType,
		Charset:     name,
		HTML:        text,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// isText accepts bodies whose sniffed type descends from text/plain or whose
// declared type is textual.
func isText(data []byte, contentType string) bool {
	if len(data) == 0 {
		return true
	}
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}

// decode converts data to UTF-8 using the declared or in-document charset,
// falling back to statistical detection when neither is certain.
func decode(data []byte, contentType string) (string, string) {
	enc, name, certain := charset.DetermineEncoding(data, contentType)
	if !certain && utf8.Valid(data) {
		return string(data), "utf-8"
	}
	if !certain {
		if res, err := chardet.NewTextDetector().DetectBest(data); err == nil && res != nil {
			if e, n := charset.Lookup(res.Charset); e != nil {
				enc, name = e, n
			}
		}
	}
	if name == "utf-8" && utf8.Valid(data) {
		return string(data), name
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data), name
	}
	return string(out), name
}

// leveledLogger routes retryablehttp logs into zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
