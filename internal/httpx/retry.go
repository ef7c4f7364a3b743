package httpx

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"
)

// RequestBuilder creates a fresh request for every attempt.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// DoWithRetry sends the request built by build, retrying transient network
// errors and retryable statuses with exponential backoff. The response body is
// always read to the end, decoded and closed so the connection can be reused.
//
// A non-2xx response that is not retried (or is retried out) returns the
// response, its body and an *HTTPError.
func DoWithRetry(ctx context.Context, client *http.Client, build RequestBuilder, cfg RetryConfig) (*http.Response, []byte, error) {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, backoff(attempt-1, cfg, lastErr)); err != nil {
				return nil, nil, err
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, nil, err
		}
		if req.Header.Get("Accept-Encoding") == "" {
			req.Header.Set("Accept-Encoding", acceptEncoding)
		}

		resp, err := client.Do(req)
		if err != nil {
			if !isTransient(err) {
				return nil, nil, err
			}
			lastErr = err
			continue
		}

		body, err := readBody(resp)
		if err != nil {
			if !isTransient(err) {
				return resp, body, err
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, body, nil
		}

		herr := &HTTPError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		}
		if !cfg.retryable(resp.StatusCode) || attempt == cfg.MaxAttempts {
			return resp, body, herr
		}
		lastErr = &retryAfterError{HTTPError: herr, wait: ParseRetryAfter(resp)}
	}

	var ra *retryAfterError
	if errors.As(lastErr, &ra) {
		return nil, nil, ra.HTTPError
	}
	if lastErr == nil {
		lastErr = errors.New("httpx: no attempts made")
	}
	return nil, nil, lastErr
}

// retryAfterError remembers the server's Retry-After hint between attempts.
type retryAfterError struct {
	*HTTPError
	wait time.Duration
}

func backoff(retry int, cfg RetryConfig, last error) time.Duration {
	var ra *retryAfterError
	if errors.As(last, &ra) && ra.wait > 0 {
		return min(ra.wait, cfg.MaxDelay)
	}
	d := cfg.BaseDelay << (retry - 1)
	if d <= 0 || d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	// up to 25% jitter
	return d + time.Duration(rand.Int64N(int64(d)/4+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
