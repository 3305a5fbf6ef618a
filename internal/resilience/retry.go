// Package resilience provides jittered exponential-backoff retries
// for the external API calls the pipeline depends on. The capture
// controller keeps its own fixed-delay loop; this package covers the
// LLM and search clients.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior. The zero value retries transient
// errors three times with 500ms initial backoff doubling to 30s.
type Policy struct {
	MaxAttempts    int           // total attempts including the first; <=0 means 3
	InitialBackoff time.Duration // <=0 means 500ms
	MaxBackoff     time.Duration // <=0 means 30s
	Multiplier     float64       // <=0 means 2.0
	Jitter         float64       // fraction of delay, <0 means none
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Do runs fn under the policy, retrying only transient errors. The
// value from the first successful call is returned. Context
// cancellation stops retries immediately.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !Transient(err) || attempt == p.MaxAttempts-1 {
			return zero, lastErr
		}

		zap.L().Warn("retrying after transient error",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func backoff(attempt int, p Policy) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	delay = math.Min(delay, float64(p.MaxBackoff))
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	return time.Duration(math.Max(delay, 0))
}

// transientPatterns catch wrapped client errors that lost their type.
var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"too many requests",
	"rate limit",
	"overloaded",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// Transient reports whether an error is safe to retry: network
// timeouts, connection faults, and provider throttling responses.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
