// Package notify posts finished game results to an HTTP webhook.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/chesstp/internal/history"
	"github.com/park285/chesstp/internal/session"
	"github.com/park285/chesstp/pkg/chessdto"
	"github.com/valyala/fasthttp"
)

// HeaderProvider injects per-request headers such as auth tokens.
type HeaderProvider func() map[string]string

// Webhook implements session.Sink.
type Webhook struct {
	url       string
	http      *fasthttp.Client
	headers   HeaderProvider
	localName string

	timeout  time.Duration
	retryMax int
}

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) { w.timeout = d }
}

func WithRetry(max int) Option {
	return func(w *Webhook) { w.retryMax = max }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(w *Webhook) { w.headers = h }
}

// WithLocalName sets the player name reported for the local side.
func WithLocalName(name string) Option {
	return func(w *Webhook) { w.localName = name }
}

// WithClient replaces the HTTP client, e.g. to dial an in-memory listener.
func WithClient(c *fasthttp.Client) Option {
	return func(w *Webhook) { w.http = c }
}

func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:      strings.TrimSpace(url),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second},
		timeout:  10 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Finish posts the session summary.
func (w *Webhook) Finish(ctx context.Context, res session.Result) error {
	return w.Post(ctx, history.Summary(res, w.localName))
}

// Post sends g as JSON, retrying transport failures and 5xx answers with
// exponential backoff until the attempts or ctx run out.
func (w *Webhook) Post(ctx context.Context, g chessdto.GameResult) error {
	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	if w.headers != nil {
		for k, v := range w.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	req.SetBody(payload)

	attempts := w.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("webhook request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = chessdto.DomainError{
				Code:      fmt.Sprintf("webhook_status_%d", status),
				Message:   fmt.Sprintf("webhook error: status=%d body=%s", status, truncate(string(resp.Body()), 512)),
				Retryable: shouldRetryStatus(status),
			}
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			return nil
		}

		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (w *Webhook) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
