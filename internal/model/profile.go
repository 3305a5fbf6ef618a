// Package model defines the domain types shared across the lead
// qualification pipeline: visitors, leads, and extracted profiles.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// EntryKind tags education and experience entries by their origin.
type EntryKind string

const (
	EntryKindEducation     EntryKind = "education"
	EntryKindCertification EntryKind = "certification"
	EntryKindWork          EntryKind = "work_experience"
	EntryKindVolunteering  EntryKind = "volunteering"
)

// UnknownName is the placeholder display name used until a real name
// is extracted from either source.
const UnknownName = "Unknown"

// EducationEntry is a single education or certification item.
// Institution is the list-membership key; entries without one are
// dropped before insertion.
type EducationEntry struct {
	Institution string    `json:"institution"`
	Credential  string    `json:"credential,omitempty"`
	DateRange   string    `json:"date_range,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Location    string    `json:"location,omitempty"`
	Kind        EntryKind `json:"kind"`
}

// ExperienceEntry is a single work or volunteering item. Organization
// is the list-membership key.
type ExperienceEntry struct {
	Organization string    `json:"organization"`
	Title        string    `json:"title,omitempty"`
	DateRange    string    `json:"date_range,omitempty"`
	StartDate    string    `json:"start_date,omitempty"`
	EndDate      string    `json:"end_date,omitempty"`
	Description  string    `json:"description,omitempty"`
	URL          string    `json:"url,omitempty"`
	Location     string    `json:"location,omitempty"`
	Kind         EntryKind `json:"kind"`
}

// Ongoing reports whether the entry has no recorded end date, which is
// interpreted as a currently active position.
func (e ExperienceEntry) Ongoing() bool {
	return strings.TrimSpace(e.EndDate) == ""
}

// Affiliation is an organization membership reference.
type Affiliation struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// ProfileRecord is the canonical normalized profile produced by the
// extraction pipeline. SourceURL is the only required identity; every
// other field may legitimately be empty on a sparse profile.
type ProfileRecord struct {
	SourceURL       string            `json:"source_url"`
	DisplayName     string            `json:"display_name"`
	Headline        string            `json:"headline,omitempty"`
	JobTitles       []string          `json:"job_titles,omitempty"`
	Location        string            `json:"location,omitempty"`
	Languages       []string          `json:"languages,omitempty"`
	CurrentEmployer string            `json:"current_employer,omitempty"`
	CurrentTitle    string            `json:"current_title,omitempty"`
	Education       []EducationEntry  `json:"education,omitempty"`
	Experience      []ExperienceEntry `json:"experience,omitempty"`
	Skills          []string          `json:"skills,omitempty"`
	FollowerCount   *int              `json:"follower_count,omitempty"`
	AvatarURL       string            `json:"avatar_url,omitempty"`
	Honors          []string          `json:"honors,omitempty"`
	Affiliations    []Affiliation     `json:"affiliations,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	CapturedAt      time.Time         `json:"captured_at"`
	RawSource       string            `json:"raw_source,omitempty"`
}

// NewProfileRecord returns a minimal shell record for sourceURL,
// ready to be filled by the extraction passes.
func NewProfileRecord(sourceURL string) *ProfileRecord {
	return &ProfileRecord{
		SourceURL:   sourceURL,
		DisplayName: UnknownName,
	}
}

// HasEducation reports whether an entry with the given institution and
// kind already exists, compared case-insensitively.
func (p *ProfileRecord) HasEducation(institution string, kind EntryKind) bool {
	for _, e := range p.Education {
		if e.Kind == kind && strings.EqualFold(e.Institution, institution) {
			return true
		}
	}
	return false
}

// HasExperience reports whether an entry with the given organization
// and kind already exists, compared case-insensitively.
func (p *ProfileRecord) HasExperience(organization string, kind EntryKind) bool {
	for _, e := range p.Experience {
		if e.Kind == kind && strings.EqualFold(e.Organization, organization) {
			return true
		}
	}
	return false
}

// AddEducation appends an entry unless its institution already exists
// for the same kind. Entries without an institution are dropped.
func (p *ProfileRecord) AddEducation(entry EducationEntry) {
	if strings.TrimSpace(entry.Institution) == "" {
		return
	}
	if p.HasEducation(entry.Institution, entry.Kind) {
		return
	}
	p.Education = append(p.Education, entry)
}

// AddExperience appends an entry unless its organization already
// exists for the same kind. Entries without an organization are
// dropped.
func (p *ProfileRecord) AddExperience(entry ExperienceEntry) {
	if strings.TrimSpace(entry.Organization) == "" {
		return
	}
	if p.HasExperience(entry.Organization, entry.Kind) {
		return
	}
	p.Experience = append(p.Experience, entry)
}

// BackfillCurrentPosition fills CurrentTitle and CurrentEmployer from
// the first ongoing work-experience entry when either is still unset.
// Ongoing entries are assumed ordered most-recent-first.
func (p *ProfileRecord) BackfillCurrentPosition() {
	if p.CurrentTitle != "" && p.CurrentEmployer != "" {
		return
	}
	for _, e := range p.Experience {
		if e.Kind != EntryKindWork || !e.Ongoing() {
			continue
		}
		if p.CurrentTitle == "" {
			p.CurrentTitle = e.Title
		}
		if p.CurrentEmployer == "" {
			p.CurrentEmployer = e.Organization
		}
		return
	}
}

// FlatColumns is the fixed column order for row-oriented output.
var FlatColumns = []string{
	"source_url",
	"display_name",
	"headline",
	"job_titles",
	"location",
	"languages",
	"current_employer",
	"current_title",
	"education",
	"experience",
	"skills",
	"follower_count",
	"avatar_url",
	"honors",
	"affiliations",
	"summary",
	"captured_at",
	"raw_source",
}

// FlatRow serializes the record into a flat key-value mapping suitable
// for tabular storage. List and object fields are JSON-encoded so each
// record field maps to exactly one column; timestamps are ISO-8601.
func (p *ProfileRecord) FlatRow() (map[string]string, error) {
	row := map[string]string{
		"source_url":       p.SourceURL,
		"display_name":     p.DisplayName,
		"headline":         p.Headline,
		"location":         p.Location,
		"current_employer": p.CurrentEmployer,
		"current_title":    p.CurrentTitle,
		"avatar_url":       p.AvatarURL,
		"summary":          p.Summary,
		"raw_source":       p.RawSource,
		"captured_at":      p.CapturedAt.UTC().Format(time.RFC3339),
		"follower_count":   "",
	}
	if p.FollowerCount != nil {
		row["follower_count"] = strconv.Itoa(*p.FollowerCount)
	}

	for col, v := range map[string]any{
		"job_titles":   emptySlice(p.JobTitles),
		"languages":    emptySlice(p.Languages),
		"education":    orEmpty(len(p.Education), any(p.Education)),
		"experience":   orEmpty(len(p.Experience), any(p.Experience)),
		"skills":       emptySlice(p.Skills),
		"honors":       emptySlice(p.Honors),
		"affiliations": orEmpty(len(p.Affiliations), any(p.Affiliations)),
	} {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, eris.Wrapf(err, "model: encode %s", col)
		}
		row[col] = string(encoded)
	}

	return row, nil
}

func emptySlice(s []string) any {
	if len(s) == 0 {
		return []string{}
	}
	return s
}

func orEmpty(n int, v any) any {
	if n == 0 {
		return []any{}
	}
	return v
}
