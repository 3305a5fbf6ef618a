package model

import (
	"strings"
	"time"
)

// LeadStatus tracks a visitor through the qualification pipeline.
type LeadStatus string

const (
	LeadStatusPending   LeadStatus = "pending"
	LeadStatusCaptured  LeadStatus = "captured"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusRejected  LeadStatus = "rejected"
	LeadStatusFailed    LeadStatus = "failed"
)

// Visitor is one row from a lead-capture CSV export: a person who
// visited the website, with whatever identity data the tracker caught.
type Visitor struct {
	Row         int    `json:"row"` // 1-based CSV line number, for operator-facing selection
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Industry    string `json:"industry"`
	Country     string `json:"country"`
	VisitCount  int    `json:"visit_count"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	LinkedInURL string `json:"linkedin_url"`
}

// Name returns the visitor's full name with empty parts elided.
func (v Visitor) Name() string {
	return strings.TrimSpace(strings.TrimSpace(v.FirstName) + " " + strings.TrimSpace(v.LastName))
}

// Researchable reports whether the row carries enough identity to be
// worth qualifying: a LinkedIn URL, or both a name and a company.
func (v Visitor) Researchable() bool {
	if strings.TrimSpace(v.LinkedInURL) != "" {
		return true
	}
	return v.Name() != "" && strings.TrimSpace(v.Company) != ""
}

// TokenUsage accumulates LLM token consumption across pipeline calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Qualification is the verdict returned by the classification service.
type Qualification struct {
	Qualified bool       `json:"qualified"`
	Score     float64    `json:"score"`
	Reasoning string     `json:"reasoning"`
	Usage     TokenUsage `json:"usage"`
}

// OutreachEmail is a drafted first-touch email for a qualified lead.
type OutreachEmail struct {
	Subject string     `json:"subject"`
	Body    string     `json:"body"`
	Usage   TokenUsage `json:"usage"`
}

// Lead is the full pipeline outcome for one visitor. Profile is nil
// when capture failed; callers distinguish "no profile obtained" from
// a sparse-but-valid profile by that nil, never by empty fields.
type Lead struct {
	ID            string         `json:"id"`
	Visitor       Visitor        `json:"visitor"`
	Status        LeadStatus     `json:"status"`
	Profile       *ProfileRecord `json:"profile,omitempty"`
	Qualification *Qualification `json:"qualification,omitempty"`
	Email         *OutreachEmail `json:"email,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
