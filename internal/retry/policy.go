// Package retry decides whether a failed embedding API call should be
// retried and how long to wait first. Decisions are pure functions of the
// attempt number and the error, so the policy is testable without a network.
package retry

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Action is the outcome of a retry decision.
type Action int

const (
	// Fail means the caller should give up on this call.
	Fail Action = iota
	// Retry means the caller should wait Decision.Delay and resubmit.
	Retry
)

// HTTPError carries the transport details a retry decision needs.
// Providers return it for any non-2xx response; a plain error means the
// request never produced a response (network failure or timeout).
type HTTPError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("embedding API returned status %d", e.StatusCode)
}

// Decision is the result of Policy.Decide.
type Decision struct {
	Action Action
	Delay  time.Duration

	// Source notes where the delay came from: "header:<name>", "body",
	// or "backoff". Logged so operators can see whether the server is
	// supplying retry hints.
	Source string
}

// Policy holds retry tunables. The zero value is unusable; use Default
// or fill every field.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay seeds the exponential backoff.
	InitialDelay time.Duration
	// MaxDelay caps every computed delay, server-supplied or not.
	MaxDelay time.Duration
}

// Default returns the policy used in production: 3 attempts, 1s initial
// delay, 60s ceiling.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
	}
}

// Headers checked for retry hints on a 429, in priority order.
// Seconds-valued headers win over millisecond-valued ones.
var (
	secondsHeaders = []string{"Retry-After", "x-ms-retry-after"}
	msHeaders      = []string{"retry-after-ms", "x-ms-retry-after-ms"}

	bodyHintRe = regexp.MustCompile(`(?i)after\s+(\d+)\s+seconds?`)
)

// Decide returns the action for a failed call. attempt is zero-based:
// Decide(0, err) is the decision after the first attempt failed.
func (p Policy) Decide(attempt int, err error) Decision {
	if err == nil {
		return Decision{Action: Fail}
	}
	if attempt >= p.MaxAttempts-1 {
		return Decision{Action: Fail}
	}

	fallback := Decision{
		Action: Retry,
		Delay:  p.backoff(attempt),
		Source: "backoff",
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		// No response at all: network failure or timeout. Transient.
		return fallback
	}

	switch {
	case httpErr.StatusCode == http.StatusTooManyRequests:
		if d, source, ok := retryHint(httpErr, p.MaxDelay); ok {
			return Decision{Action: Retry, Delay: d, Source: source}
		}
		return fallback
	case httpErr.StatusCode >= 500:
		// Server errors get backoff only; their headers carry no hints.
		return fallback
	default:
		// Any other 4xx is a permanent error for this call.
		return Decision{Action: Fail}
	}
}

// retryHint extracts a server-supplied delay from headers or the error
// body. Negative or unparseable values are skipped so the caller falls
// through to exponential backoff.
func retryHint(httpErr *HTTPError, maxDelay time.Duration) (time.Duration, string, bool) {
	for _, name := range secondsHeaders {
		raw := httpErr.Header.Get(name)
		if raw == "" {
			continue
		}
		if secs, ok := parseSeconds(raw); ok {
			return clampDelay(secs, maxDelay), "header:" + name, true
		}
	}

	for _, name := range msHeaders {
		raw := httpErr.Header.Get(name)
		if raw == "" {
			continue
		}
		if ms, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && ms >= 0 {
			secs := time.Duration(math.Ceil(ms/1000.0)) * time.Second
			return clampDelay(secs, maxDelay), "header:" + name, true
		}
	}

	if m := bodyHintRe.FindSubmatch(httpErr.Body); m != nil {
		if secs, err := strconv.Atoi(string(m[1])); err == nil && secs >= 0 {
			return clampDelay(time.Duration(secs)*time.Second, maxDelay), "body", true
		}
	}

	return 0, "", false
}

// parseSeconds converts a Retry-After style value into a duration.
// Accepts plain numbers and HTTP-date values.
func parseSeconds(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(math.Ceil(secs)) * time.Second, true
	}

	if at, err := http.ParseTime(raw); err == nil {
		delta := time.Until(at)
		if delta <= 0 {
			return 0, false
		}
		return delta.Round(time.Second), true
	}

	return 0, false
}

// backoff computes initialDelay * 2^attempt, clamped to [1s, MaxDelay].
func (p Policy) backoff(attempt int) time.Duration {
	d := p.InitialDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay && p.MaxDelay > 0 {
			break
		}
	}
	return clampDelay(d, p.MaxDelay)
}

func clampDelay(d, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}
