package jolpica

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// errRetryableStatus marks an attempt that got a response worth retrying.
type errRetryableStatus struct {
	status int
}

func (e errRetryableStatus) Error() string {
	return fmt.Sprintf("upstream status %d", e.status)
}

// doWithRetry runs do up to MaxRetries+1 times.
//   - Retries only on transient network errors, 408, 429 and 5xx.
//   - Honors Retry-After on those responses.
//   - Backs off exponentially with full jitter between attempts.
//   - Stops as soon as ctx is done.
//
// On exhaustion the returned error carries the last status seen (0 when no
// response was received) so callers can classify it.
func (c *client) doWithRetry(
	ctx context.Context,
	op string,
	do func(ctx context.Context) (*http.Response, error),
) (*http.Response, int, error) {
	var lastErr error
	lastStatus := 0
	maxAttempts := c.cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, lastStatus, err
		}

		start := time.Now()
		resp, err := do(ctx)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		c.logger.Debug("upstream attempt",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		var retryAfter time.Duration
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, lastStatus, err
			}
			if !isTransientNetError(err) {
				return nil, lastStatus, err
			}
			lastErr = err
		case !shouldRetryStatus(status):
			return resp, status, nil
		default:
			lastErr = errRetryableStatus{status: status}
			lastStatus = status
			retryAfter = parseRetryAfter(resp)
			// Close before retrying so the connection can be reused.
			if resp.Body != nil {
				resp.Body.Close()
			}
		}

		if attempt == maxAttempts-1 {
			break
		}

		wait := computeBackoff(c.cfg.BaseBackoff, attempt)
		if retryAfter > 0 {
			c.logger.Info("honoring Retry-After header",
				zap.String("op", op),
				zap.Duration("wait", retryAfter),
				zap.Int("status", status),
			)
			wait = retryAfter
		}

		select {
		case <-ctx.Done():
			return nil, lastStatus, ctx.Err()
		case <-time.After(wait):
		}
	}

	c.logger.Warn("upstream request exhausted retries",
		zap.String("op", op),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)

	if lastErr == nil {
		lastErr = errors.New("unknown upstream error")
	}
	return nil, lastStatus, fmt.Errorf("max attempts (%d) exceeded: %w", maxAttempts, lastErr)
}

// isTransientNetError reports whether a transport error is worth retrying.
func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial", "read", "write":
			return true
		}
	}

	// Wrapped errors sometimes only survive as text.
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporary failure",
		"unexpected eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

func shouldRetryStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}

const maxRetryAfter = 2 * time.Minute

// parseRetryAfter reads Retry-After as seconds or an HTTP date.
// Returns 0 if missing or invalid.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}

	var d time.Duration
	if seconds, err := strconv.Atoi(v); err == nil {
		d = time.Duration(seconds) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	}

	if d <= 0 {
		return 0
	}
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

// computeBackoff returns a random duration in [0, base*2^attempt), capped.
//
// Example progression (base=200ms):
// Attempt 0: 0-200ms
// Attempt 1: 0-400ms
// Attempt 2: 0-800ms
func computeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 200 * time.Millisecond
	}

	const maxExponent = 10
	if attempt > maxExponent {
		attempt = maxExponent
	}

	ceiling := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	const maxAllowed = 30 * time.Second
	if ceiling > maxAllowed {
		ceiling = maxAllowed
	}

	return time.Duration(rand.Float64() * float64(ceiling))
}
