package gateway

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// retryTransport retries network errors and 5xx responses with exponential backoff.
// The final 5xx response is handed back to the caller unchanged.
type retryTransport struct {
	base            http.RoundTripper
	maxAttempts     int
	initialInterval time.Duration
	logger          *zap.Logger
}

func newRetryTransport(base http.RoundTripper, maxAttempts int, initialInterval time.Duration, logger *zap.Logger) *retryTransport {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryTransport{
		base:            base,
		maxAttempts:     maxAttempts,
		initialInterval: initialInterval,
		logger:          logger,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.initialInterval
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.maxAttempts-1)), req.Context())

	var resp *http.Response
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		attemptReq, err := rewind(req, attempt)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			if req.Context().Err() != nil {
				return backoff.Permanent(err)
			}
			t.logger.Debug("Request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		if r.StatusCode >= http.StatusInternalServerError && attempt < t.maxAttempts {
			_, _ = io.Copy(io.Discard, r.Body)
			r.Body.Close()
			t.logger.Debug("Server error, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Int("status", r.StatusCode))
			return fmt.Errorf("server responded %d", r.StatusCode)
		}
		resp = r
		return nil
	}, b)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// rewind returns the request to send for the given attempt, restoring the body
// on retries.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 || req.Body == nil || req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}
