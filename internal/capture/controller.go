package capture

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNoCapture is returned when the attempt budget is exhausted
// without a successful capture. It is an explicit outcome for one
// target, distinguishable from a sparse-but-valid profile; batch
// callers record it and continue with the next target.
var ErrNoCapture = eris.New("capture: no successful attempt")

// Attempt records the classification of one capture attempt. The raw
// document is deliberately not retained here: only the winning
// attempt's document survives the loop, inside the Outcome.
type Attempt struct {
	Index            int
	HasSchema        bool
	AuthWall         bool
	PlausibleContent bool
	Succeeded        bool
	Err              error
}

// Outcome is a successful capture: the winning attempt's document and
// the per-attempt diagnostics that led to it.
type Outcome struct {
	HTML     string
	Winner   int // 1-based attempt index
	Attempts []Attempt
}

// Config bounds the capture loop.
type Config struct {
	MaxAttempts int
	// SettleDelay runs after every page load before the document is
	// captured, letting late-rendered content land.
	SettleDelay time.Duration
	// RetryDelay runs between non-final attempts to decouple
	// successive anti-bot detection windows.
	RetryDelay time.Duration
}

// DefaultConfig mirrors the pacing the target site tolerates.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		SettleDelay: 2 * time.Second,
		RetryDelay:  4 * time.Second,
	}
}

// Controller owns a Session and runs the bounded retry loop for one
// target at a time. It is not safe for concurrent use; per-target
// processing is intentionally sequential to keep load against the
// target site predictable.
type Controller struct {
	session Session
	cfg     Config
	log     *zap.Logger
}

// NewController wraps session with the given attempt budget and
// delays. Zero or negative config values fall back to defaults.
func NewController(session Session, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return &Controller{session: session, cfg: cfg, log: zap.L()}
}

// Capture loads url up to MaxAttempts times and returns the first
// attempt whose document carries structured person metadata with no
// authentication barrier. Transient navigation errors are absorbed,
// logged, and counted against the budget. On exhaustion it returns
// ErrNoCapture; no document from any attempt is retained.
func (c *Controller) Capture(ctx context.Context, url string) (*Outcome, error) {
	log := c.log.With(zap.String("url", url))
	attempts := make([]Attempt, 0, c.cfg.MaxAttempts)

	for i := 1; i <= c.cfg.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "capture: cancelled")
		}

		attempt := Attempt{Index: i}
		html, err := c.loadOnce(ctx, url)
		if err != nil {
			attempt.Err = err
			attempts = append(attempts, attempt)
			log.Warn("capture: attempt failed",
				zap.Int("attempt", i),
				zap.Int("max_attempts", c.cfg.MaxAttempts),
				zap.Error(err),
			)
		} else {
			sig := Classify(html)
			attempt.HasSchema = sig.HasSchema
			attempt.AuthWall = sig.AuthWall
			attempt.PlausibleContent = sig.PlausibleContent
			attempt.Succeeded = sig.Succeeded()
			attempts = append(attempts, attempt)

			log.Debug("capture: attempt classified",
				zap.Int("attempt", i),
				zap.Bool("has_schema", sig.HasSchema),
				zap.Bool("auth_wall", sig.AuthWall),
				zap.Bool("plausible_content", sig.PlausibleContent),
			)

			if attempt.Succeeded {
				log.Info("capture: succeeded", zap.Int("attempt", i))
				return &Outcome{HTML: html, Winner: i, Attempts: attempts}, nil
			}
		}

		if i < c.cfg.MaxAttempts {
			if err := sleepCtx(ctx, c.cfg.RetryDelay); err != nil {
				return nil, eris.Wrap(err, "capture: cancelled between attempts")
			}
		}
	}

	log.Warn("capture: attempt budget exhausted", zap.Int("attempts", len(attempts)))
	return nil, eris.Wrapf(ErrNoCapture, "capture: %s after %d attempts", url, c.cfg.MaxAttempts)
}

// loadOnce performs one navigation with the settle delay. The
// document it returns is owned by the calling attempt.
func (c *Controller) loadOnce(ctx context.Context, url string) (string, error) {
	return c.session.Navigate(ctx, url, c.cfg.SettleDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
