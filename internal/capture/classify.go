// Package capture drives repeated page loads of a profile target and
// promotes the first attempt whose document carries usable structured
// metadata. One target is processed at a time; the browser session is
// owned by the controller for the life of a target list.
package capture

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// authWallPhrases are matched case-insensitively against the rendered
// page text to detect a login/signup gate.
var authWallPhrases = []string{
	"sign in to linkedin",
	"join linkedin",
	"authwall",
	"login required",
	"please sign in",
	"join to view",
	"sign up to view",
}

// contentMarkers are markup fragments that indicate a real profile
// page rendered, as opposed to an empty app shell. Their presence is
// recorded for diagnostics but does not gate success: only structured
// metadata parses consistently enough to trust.
var contentMarkers = []string{
	`class="pv-text-details__left-panel"`,
	`class="pv-top-card"`,
	`class="experience__company-name"`,
	`class="education__school-name"`,
	`data-section="summary"`,
	`data-section="experience"`,
	`data-section="education"`,
	`class="pv-top-card__non-inline-text"`,
	`class="text-heading-xlarge"`,
}

// personSchemaKeys are profile-specific keys a person metadata block
// must carry before it counts as extraction-worthy.
var personSchemaKeys = []string{`"jobTitle"`, `"worksFor"`, `"alumniOf"`}

// Signals holds the classification of one captured document.
type Signals struct {
	HasSchema        bool
	AuthWall         bool
	PlausibleContent bool
}

// Succeeded reports the attempt success rule: structured person
// metadata present and no authentication barrier.
func (s Signals) Succeeded() bool {
	return s.HasSchema && !s.AuthWall
}

// Classify inspects a captured document and returns its signals.
// A document that fails to parse yields all-false signals.
func Classify(htmlContent string) Signals {
	var sig Signals

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return sig
	}

	sig.AuthWall = detectAuthWall(doc)
	sig.HasSchema = hasPersonSchema(doc)
	sig.PlausibleContent = hasContentMarkers(htmlContent)
	return sig
}

func detectAuthWall(doc *goquery.Document) bool {
	pageText := strings.ToLower(doc.Text())
	for _, phrase := range authWallPhrases {
		if strings.Contains(pageText, phrase) {
			return true
		}
	}
	return false
}

func hasPersonSchema(doc *goquery.Document) bool {
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		block := strings.TrimSpace(s.Text())
		if block == "" {
			return true
		}
		// Tolerate both compact and pretty-printed serializations.
		compact := strings.Join(strings.Fields(block), "")
		if !strings.Contains(compact, `"@type":"Person"`) {
			return true
		}
		for _, key := range personSchemaKeys {
			if strings.Contains(block, key) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func hasContentMarkers(htmlContent string) bool {
	for _, marker := range contentMarkers {
		if strings.Contains(htmlContent, marker) {
			return true
		}
	}
	return false
}
