package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadqual/internal/capture"
	"github.com/sells-group/leadqual/internal/config"
	"github.com/sells-group/leadqual/internal/model"
	"github.com/sells-group/leadqual/internal/profile"
	"github.com/sells-group/leadqual/internal/store"
	"github.com/sells-group/leadqual/pkg/anthropic"
	"github.com/sells-group/leadqual/pkg/perplexity"
)

// SessionFactory opens a fresh browser session. Each capture gets its
// own session so a wedged page cannot poison later attempts.
type SessionFactory func(ctx context.Context) (capture.Session, error)

// Pipeline runs visitors through capture, qualification, and drafting.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	qualifier  *Qualifier
	drafter    *Drafter
	newSession SessionFactory
	limiter    *rate.Limiter
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, pplx perplexity.Client, ai anthropic.Client, newSession SessionFactory) *Pipeline {
	rpm := cfg.Batch.RequestsPerMinute
	if rpm <= 0 {
		rpm = 6
	}
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		qualifier:  NewQualifier(pplx, ai, cfg.Anthropic, cfg.Qualify),
		drafter:    NewDrafter(ai, cfg.Anthropic, cfg.Qualify),
		newSession: newSession,
		limiter:    rate.NewLimiter(rate.Limit(rpm/60.0), 1),
	}
}

// CaptureProfile fetches and extracts a profile, going through the
// store cache first. A cache hit skips the browser entirely.
func (p *Pipeline) CaptureProfile(ctx context.Context, profileURL string) (*model.ProfileRecord, error) {
	log := zap.L().With(zap.String("url", profileURL))

	if p.store != nil {
		cached, err := p.store.GetCachedProfile(ctx, profileURL)
		if err != nil {
			log.Debug("pipeline: profile cache lookup failed", zap.Error(err))
		}
		if cached != nil {
			log.Info("pipeline: using cached profile")
			return cached, nil
		}
	}

	session, err := p.newSession(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open session")
	}
	defer session.Close() //nolint:errcheck

	controller := capture.NewController(session, capture.Config{
		MaxAttempts: p.cfg.Capture.MaxAttempts,
		SettleDelay: p.cfg.Capture.SettleDelay(),
		RetryDelay:  p.cfg.Capture.RetryDelay(),
	})
	outcome, err := controller.Capture(ctx, profileURL)
	if err != nil {
		return nil, err
	}

	rec, err := profile.Extract(outcome.HTML, profileURL)
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		ttl := time.Duration(p.cfg.Capture.CacheTTLHours) * time.Hour
		if ttl <= 0 {
			ttl = 7 * 24 * time.Hour
		}
		if err := p.store.SaveProfile(ctx, rec, ttl); err != nil {
			log.Warn("pipeline: failed to cache profile", zap.Error(err))
		}
	}
	return rec, nil
}

// ProcessVisitor runs one visitor through the full pipeline. Failures
// at any stage are recorded on the lead rather than aborting the batch.
func (p *Pipeline) ProcessVisitor(ctx context.Context, visitor model.Visitor) *model.Lead {
	log := zap.L().With(
		zap.Int("row", visitor.Row),
		zap.String("visitor", visitor.Name()),
		zap.String("company", visitor.Company),
	)
	lead := &model.Lead{
		Visitor:   visitor,
		Status:    model.LeadStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	// Capture is best-effort: qualification can proceed on the CSV row
	// alone when the profile is unreachable.
	if visitor.LinkedInURL != "" {
		rec, err := p.CaptureProfile(ctx, visitor.LinkedInURL)
		if err != nil {
			log.Warn("pipeline: profile capture failed", zap.Error(err))
			lead.Error = err.Error()
		} else {
			lead.Profile = rec
			lead.Status = model.LeadStatusCaptured
		}
	}

	qual, err := p.qualifier.Qualify(ctx, visitor, lead.Profile)
	if err != nil {
		log.Error("pipeline: qualification failed", zap.Error(err))
		lead.Status = model.LeadStatusFailed
		lead.Error = err.Error()
		return lead
	}
	lead.Qualification = qual

	if !qual.Qualified {
		lead.Status = model.LeadStatusRejected
		return lead
	}
	lead.Status = model.LeadStatusQualified

	email, err := p.drafter.Draft(ctx, visitor, qual)
	if err != nil {
		// A qualified lead without a draft is still a qualified lead.
		log.Warn("pipeline: email drafting failed", zap.Error(err))
		lead.Error = err.Error()
		return lead
	}
	lead.Email = email
	return lead
}

// RunBatch processes visitors sequentially, pacing LLM calls with the
// configured rate limit. Per-visitor failures are recorded on the lead;
// only context cancellation stops the batch.
func (p *Pipeline) RunBatch(ctx context.Context, visitors []model.Visitor) ([]model.Lead, error) {
	visitors = FilterResearchable(visitors)
	if max := p.cfg.Batch.MaxVisitors; max > 0 && len(visitors) > max {
		zap.L().Info("pipeline: truncating batch",
			zap.Int("selected", len(visitors)),
			zap.Int("max", max),
		)
		visitors = visitors[:max]
	}

	leads := make([]model.Lead, 0, len(visitors))
	for i, visitor := range visitors {
		if err := p.limiter.Wait(ctx); err != nil {
			return leads, eris.Wrap(err, "pipeline: batch cancelled")
		}

		zap.L().Info("pipeline: processing visitor",
			zap.Int("index", i+1),
			zap.Int("total", len(visitors)),
			zap.String("visitor", visitor.Name()),
		)
		lead := p.ProcessVisitor(ctx, visitor)

		if p.store != nil {
			if err := p.store.SaveLead(ctx, lead); err != nil {
				zap.L().Warn("pipeline: failed to save lead", zap.Error(err))
			}
		}
		leads = append(leads, *lead)
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int("processed", len(leads)),
		zap.Int("qualified", countByStatus(leads, model.LeadStatusQualified)),
		zap.Int("rejected", countByStatus(leads, model.LeadStatusRejected)),
		zap.Int("failed", countByStatus(leads, model.LeadStatusFailed)),
	)
	return leads, nil
}

func countByStatus(leads []model.Lead, status model.LeadStatus) int {
	n := 0
	for _, l := range leads {
		if l.Status == status {
			n++
		}
	}
	return n
}
