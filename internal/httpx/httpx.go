// Package httpx sends HTTP requests with retries and returns fully read,
// decoded bodies.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError is returned for responses outside 2xx. Body is already decoded.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, Snippet(e.Body, 500))
}

// Snippet trims b and cuts it to at most max bytes for log and error output.
func Snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// RetryConfig controls DoWithRetry.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retry5xx retries every 5xx status.
	Retry5xx bool
	// RetryStatuses are retried regardless of Retry5xx.
	RetryStatuses map[int]bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    20 * time.Second,
		Retry5xx:    true,
		RetryStatuses: map[int]bool{
			http.StatusTooManyRequests: true,
			http.StatusRequestTimeout:  true,
		},
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		return def
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.RetryStatuses == nil {
		c.RetryStatuses = def.RetryStatuses
	}
	return c
}

func (c RetryConfig) retryable(code int) bool {
	return c.RetryStatuses[code] || (c.Retry5xx && code >= 500 && code <= 599)
}

// ParseRetryAfter reads the Retry-After header as seconds or as an HTTP date.
// Missing, invalid or past values give 0.
func ParseRetryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// DoJSON runs DoWithRetry and unmarshals the body into out (skipped when out is nil).
func DoJSON(ctx context.Context, client *http.Client, build RequestBuilder, out any, cfg RetryConfig) error {
	_, body, err := DoWithRetry(ctx, client, build, cfg)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json parse error: %w body=%s", err, Snippet(body, 500))
	}
	return nil
}
