// Package report is the HTTP transport used to talk to the task-tracking
// service. It knows nothing about tasks: it sends authenticated JSON requests
// and retries transient failures with exponential backoff.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultAttempts  = 3
	DefaultBaseDelay = 500 * time.Millisecond

	// maxBodyLog bounds how much of an error body is kept in StatusError.
	maxBodyLog = 512
)

// Doer sends one logical request, retrying as configured.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// Options configures a Client. Zero values take the defaults above.
type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration // per attempt
	Attempts  int           // total attempts, including the first
	BaseDelay time.Duration // delay before the second attempt; doubles after
	HTTP      *http.Client
	Logger    *zap.Logger
}

// Client implements Doer over net/http.
type Client struct {
	base      string
	token     string
	timeout   time.Duration
	attempts  int
	baseDelay time.Duration
	http      *http.Client
	log       *zap.Logger
}

// New creates a Client.
func New(o Options) *Client {
	c := &Client{
		base:      strings.TrimRight(o.BaseURL, "/"),
		token:     o.Token,
		timeout:   o.Timeout,
		attempts:  o.Attempts,
		baseDelay: o.BaseDelay,
		http:      o.HTTP,
		log:       o.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.attempts < 1 {
		c.attempts = DefaultAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Policy returns the backoff schedule for one request: base delay doubling on
// every retry, no jitter, at most attempts-1 retries, stopped by ctx.
func (c *Client) Policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.baseDelay << 10
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.attempts-1)), ctx)
}

// Do sends method path with body JSON-encoded (nil for no body) and decodes a
// 2xx response into out (nil to discard).
//
// Connection errors, per-attempt timeouts and 5xx/429 responses are retried.
// Once attempts are used up the last error is returned wrapped in
// ErrRetriesExhausted. Other 4xx responses fail immediately with *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("report: encode body: %w", err)
		}
		payload = b
	}
	url := c.base + path

	ctx, span := otel.Tracer("github.com/ja7ad/rectask/pkg/report").Start(ctx, "report "+method)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.url", url))

	var (
		attempt  int
		lastErr  error
		terminal bool
	)
	op := func() error {
		attempt++
		retry, err := c.once(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			terminal = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("request failed, retrying",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(op, c.Policy(ctx), notify)
	span.SetAttributes(attribute.Int("http.attempts", attempt))
	if err == nil {
		return nil
	}

	switch {
	case ctx.Err() != nil:
		err = fmt.Errorf("report: %s %s: %w", method, url, ctx.Err())
	case terminal:
		// permanent failure, returned as-is
	default:
		err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, lastErr)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.log.Error("request failed",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("attempts", attempt),
		zap.Error(err))
	return err
}

// once performs a single attempt. retry reports whether a failure is transient.
func (c *Client) once(ctx context.Context, method, url string, payload []byte, out any) (retry bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return false, fmt.Errorf("report: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	// connection refused/reset, DNS and per-attempt deadline errors are transient
	resp, err := c.http.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("report: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxBodyLog {
			data = data[:maxBodyLog]
		}
		se := &StatusError{
			Method: method,
			URL:    url,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
		return se.Temporary(), se
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("report: decode response: %w", err)
	}
	return false, nil
}
