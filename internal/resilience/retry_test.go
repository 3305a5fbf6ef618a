package resilience

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := Do(context.Background(), fastPolicy(3), "test", func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	val, err := Do(context.Background(), fastPolicy(5), "test", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, eris.New("upstream returned status 503")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), "test", func(context.Context) (int, error) {
		calls++
		return 0, eris.New("invalid api key")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), "test", func(context.Context) (int, error) {
		calls++
		return 0, eris.New("rate limit exceeded")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastPolicy(5), "test", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, eris.New("status 429")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransient(t *testing.T) {
	assert.False(t, Transient(nil))
	assert.False(t, Transient(eris.New("invalid request body")))

	assert.True(t, Transient(eris.New("read tcp: connection reset by peer")))
	assert.True(t, Transient(eris.New("perplexity: status 429")))
	assert.True(t, Transient(eris.New("anthropic: model overloaded")))
	assert.True(t, Transient(eris.Wrap(timeoutErr{}, "wrapped")))

	var netErr net.Error = timeoutErr{}
	assert.True(t, Transient(netErr))
}

func TestBackoffCapped(t *testing.T) {
	p := Policy{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
		Multiplier:     2,
	}.normalized()

	assert.Equal(t, 10*time.Millisecond, backoff(0, p))
	assert.Equal(t, 20*time.Millisecond, backoff(1, p))
	assert.Equal(t, 40*time.Millisecond, backoff(2, p))
	assert.Equal(t, 40*time.Millisecond, backoff(5, p))
}
