// Package profile reconstructs a normalized profile record from the
// raw HTML of a professional-networking profile page. Two competing
// sources feed the record: embedded JSON-LD metadata and direct HTML
// scraping behind cascading selector fallbacks. Structured metadata is
// the higher-trust source; HTML only fills the gaps it leaves.
package profile

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResolveText tries each candidate selector in order against s and
// returns the trimmed text of the first match whose length falls
// within [minLen, maxLen]. maxLen <= 0 means unbounded. A miss is the
// common case, reported as ok=false, never an error: profile markup
// drifts constantly and the cascade is the defense against it.
func ResolveText(s *goquery.Selection, candidates []string, minLen, maxLen int) (string, bool) {
	for _, selector := range candidates {
		text := strings.TrimSpace(s.Find(selector).First().Text())
		if !lengthOK(text, minLen, maxLen) {
			continue
		}
		return text, true
	}
	return "", false
}

// ResolveEach collects the trimmed, length-valid, de-duplicated text
// of every element matched by every candidate selector, preserving
// first-seen order across the cascade.
func ResolveEach(s *goquery.Selection, candidates []string, minLen, maxLen int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, selector := range candidates {
		s.Find(selector).Each(func(_ int, el *goquery.Selection) {
			text := strings.TrimSpace(el.Text())
			if !lengthOK(text, minLen, maxLen) {
				return
			}
			if _, dup := seen[text]; dup {
				return
			}
			seen[text] = struct{}{}
			out = append(out, text)
		})
	}
	return out
}

// resolveSections returns the elements matched by the first candidate
// selector that matches anything. Section anchors are tried
// most-specific first, so later generic patterns only apply when the
// explicit markers are gone.
func resolveSections(s *goquery.Selection, candidates []string) *goquery.Selection {
	for _, selector := range candidates {
		if found := s.Find(selector); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func lengthOK(text string, minLen, maxLen int) bool {
	if text == "" || len(text) < minLen {
		return false
	}
	if maxLen > 0 && len(text) > maxLen {
		return false
	}
	return true
}
