package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v62/github"
)

// Sentinel errors for the forge error taxonomy. Use errors.Is against any error
// returned by the gateway.
var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrTimeout     = errors.New("timed out")
	ErrNetwork     = errors.New("network failure")
	ErrRejected    = errors.New("request rejected")

	// ErrUnsupported means a count source does not exist for a collection.
	ErrUnsupported = errors.New("unsupported")
)

// ErrorKind classifies a terminal gateway failure.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindNotFound
	KindRateLimited
	KindTimeout
	KindRejected
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindRateLimited:
		return ErrRateLimited
	case KindTimeout:
		return ErrTimeout
	case KindRejected:
		return ErrRejected
	default:
		return ErrNetwork
	}
}

// Error is a terminal failure of one gateway call.
type Error struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	// RetryAt is when a rate limit resets, if the server said so.
	RetryAt time.Time
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.sentinel().Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if !e.RetryAt.IsZero() {
		msg += ", resets at " + e.RetryAt.UTC().Format(time.RFC3339)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= http.StatusInternalServerError:
		return KindNetwork
	default:
		return KindRejected
	}
}

// responseStatus returns the HTTP status of a go-github error response, or 0.
func responseStatus(err error) int {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return statusOf(respErr.Response)
	}
	return 0
}

// wrapError maps a go-github client error onto the gateway taxonomy.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		respErr  *github.ErrorResponse
		netErr   net.Error
	)
	switch {
	case errors.As(err, &rateErr):
		return &Error{Op: op, Kind: KindRateLimited, StatusCode: statusOf(rateErr.Response), RetryAt: rateErr.Rate.Reset.Time, Err: err}
	case errors.As(err, &abuseErr):
		e := &Error{Op: op, Kind: KindRateLimited, StatusCode: statusOf(abuseErr.Response), Err: err}
		if abuseErr.RetryAfter != nil {
			e.RetryAt = time.Now().Add(*abuseErr.RetryAfter)
		}
		return e
	case errors.As(err, &respErr):
		code := statusOf(respErr.Response)
		return &Error{Op: op, Kind: kindForStatus(code), StatusCode: code, Err: err}
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Op: op, Kind: KindTimeout, Err: err}
	default:
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
}

// wrapGraphQLError maps a githubv4 error onto the gateway taxonomy.
// The GraphQL client does not expose HTTP status codes, so anything that is not
// a transport failure is treated as a rejected request.
func wrapGraphQLError(op string, err error) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Op: op, Kind: KindTimeout, Err: err}
	case errors.As(err, &urlErr):
		if urlErr.Timeout() {
			return &Error{Op: op, Kind: KindTimeout, Err: err}
		}
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	default:
		return &Error{Op: op, Kind: KindRejected, Err: err}
	}
}
