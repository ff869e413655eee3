package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SignalDesk/internal/domain/repository"
	svcmetrics "SignalDesk/internal/service/metrics"
	xhttp "SignalDesk/pkg/http"
)

// HTTPServiceBase is the shared JSON-over-HTTP client for the analytics
// collaborators.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
	retries int
	backoff time.Duration
}

type BaseOption func(*HTTPServiceBase)

// WithHTTPClient replaces the underlying client, mostly for tests.
func WithHTTPClient(c *xhttp.Client) BaseOption {
	return func(b *HTTPServiceBase) { b.client = c }
}

func WithBackoff(d time.Duration) BaseOption {
	return func(b *HTTPServiceBase) { b.backoff = d }
}

func NewHTTPServiceBase(baseURL string, timeout time.Duration, retries int, opts ...BaseOption) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	b := &HTTPServiceBase{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		retries: retries,
		backoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PostJSON posts payload to path under baseURL and decodes the JSON answer into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("analytics http client not initialized: %w", repository.ErrUnavailable)
	}
	start := time.Now()
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	svcmetrics.ObserveAnalytics(path, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transport failures and retryable statuses up to
// the configured count. Client errors fail immediately. The final error wraps
// ErrUnavailable.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	var err error
	for i := 0; i <= b.retries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i) * b.backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", repository.ErrUnavailable, ctx.Err())
			}
		}
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			break
		}
	}
	return fmt.Errorf("%w: %w", repository.ErrUnavailable, err)
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}
