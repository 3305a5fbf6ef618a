package store

import (
	"context"
	"time"

	"github.com/sells-group/leadqual/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status  model.LeadStatus `json:"status,omitempty"`
	Company string           `json:"company,omitempty"`
	Limit   int              `json:"limit,omitempty"`
	Offset  int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the qualification pipeline.
type Store interface {
	// Leads
	SaveLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)

	// Profile cache
	SaveProfile(ctx context.Context, rec *model.ProfileRecord, ttl time.Duration) error
	GetCachedProfile(ctx context.Context, sourceURL string) (*model.ProfileRecord, error)
	DeleteExpiredProfiles(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
