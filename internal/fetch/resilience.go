package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BackoffConfig is the retry schedule for transient download failures.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// delay returns the wait before retry number attempt (0-based), doubling
// from InitialInterval and capped at MaxInterval.
func (b BackoffConfig) delay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := b.InitialInterval << attempt
	if b.MaxInterval > 0 && (d > b.MaxInterval || d <= 0) {
		return b.MaxInterval
	}
	return d
}

var (
	errThrottled   = errors.New("data source throttled the download")
	errUnavailable = errors.New("data source unavailable")
	// errRejected covers 4xx answers other than 429; retrying cannot help.
	errRejected    = errors.New("data source rejected the download")
	errBreakerOpen = errors.New("too many failing downloads, circuit open")
)

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-fetch",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		// A missing file says nothing about the health of the source.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
	})
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", errThrottled, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", errUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d", errRejected, code)
	}
}

// get fetches url, retrying throttling, server and transport errors with
// backoff. The caller closes the response body.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.getOnce(ctx, url)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, errRejected) || errors.Is(err, errBreakerOpen) || attempt >= c.backoff.MaxRetries {
			return nil, err
		}

		wait := c.backoff.delay(attempt)
		c.logger.Debug("retrying download",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) getOnce(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	out, err := c.circuit.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp.StatusCode); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %v", errBreakerOpen, err)
	case err != nil:
		return nil, err
	}
	return out.(*http.Response), nil
}
