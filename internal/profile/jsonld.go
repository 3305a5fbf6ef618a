package profile

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/model"
)

const (
	typePerson       = "Person"
	typeEducational  = "EducationalOrganization"
	followCounterKey = "Follows"
)

// jsonNode wraps a loosely-typed JSON object so every field read has a
// single well-defined absence behavior instead of type assertions
// scattered at each call site.
type jsonNode map[string]any

func asNode(v any) (jsonNode, bool) {
	m, ok := v.(map[string]any)
	return jsonNode(m), ok
}

// str returns the string value at key, trimmed, or "".
func (n jsonNode) str(key string) string {
	s, _ := n[key].(string)
	return strings.TrimSpace(s)
}

// child returns the object value at key.
func (n jsonNode) child(key string) (jsonNode, bool) {
	return asNode(n[key])
}

// children returns the value at key as a list of objects. A single
// object is wrapped; scalars and absent keys yield nil.
func (n jsonNode) children(key string) []jsonNode {
	switch v := n[key].(type) {
	case map[string]any:
		return []jsonNode{jsonNode(v)}
	case []any:
		var out []jsonNode
		for _, item := range v {
			if node, ok := asNode(item); ok {
				out = append(out, node)
			}
		}
		return out
	default:
		return nil
	}
}

// strings returns the value at key as a list of strings. Scalars are
// wrapped; objects contribute their "name" field.
func (n jsonNode) strings(key string) []string {
	var out []string
	switch v := n[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			switch iv := item.(type) {
			case string:
				if s := strings.TrimSpace(iv); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if name := jsonNode(iv).str("name"); name != "" {
					out = append(out, name)
				}
			}
		}
	case map[string]any:
		if name := jsonNode(v).str("name"); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// hasType reports whether the node's @type (string or list) includes
// the given schema.org type.
func (n jsonNode) hasType(want string) bool {
	switch v := n["@type"].(type) {
	case string:
		return v == want
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// personNode locates the Person node inside a parsed metadata block:
// either the block itself declares Person, or its @graph contains a
// node that does.
func personNode(block jsonNode) (jsonNode, bool) {
	if block.hasType(typePerson) {
		return block, true
	}
	for _, item := range block.children("@graph") {
		if item.hasType(typePerson) {
			return item, true
		}
	}
	return nil, false
}

// extractStructured scans the document's JSON-LD script blocks for a
// person profile and projects the first qualifying block into a
// ProfileRecord. Malformed blocks are skipped, not fatal. Returns
// ok=false when no qualifying block exists anywhere in the document;
// the caller builds a shell record instead.
func extractStructured(doc *goquery.Document, sourceURL string) (*model.ProfileRecord, bool) {
	var rec *model.ProfileRecord

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		var block map[string]any
		if err := json.Unmarshal([]byte(raw), &block); err != nil {
			zap.L().Debug("profile: skipping malformed metadata block", zap.Error(err))
			return true
		}

		person, ok := personNode(jsonNode(block))
		if !ok {
			return true
		}

		rec = projectPerson(person, sourceURL, raw)
		return false
	})

	return rec, rec != nil
}

// projectPerson maps a Person node into a ProfileRecord.
func projectPerson(person jsonNode, sourceURL, raw string) *model.ProfileRecord {
	rec := model.NewProfileRecord(sourceURL)
	rec.RawSource = raw

	if name := person.str("name"); name != "" {
		rec.DisplayName = name
	}
	rec.JobTitles = person.strings("jobTitle")
	rec.Location = composeLocation(person)
	rec.Languages = person.strings("knowsLanguage")
	rec.Summary = person.str("description")
	rec.Honors = person.strings("awards")

	if image, ok := person.child("image"); ok {
		rec.AvatarURL = image.str("contentUrl")
	}
	for _, org := range person.children("memberOf") {
		if name := org.str("name"); name != "" {
			rec.Affiliations = append(rec.Affiliations, model.Affiliation{Name: name, URL: org.str("url")})
		}
	}
	rec.FollowerCount = followerCount(person)

	// Current position comes from the first listed employer; the
	// source orders affiliations most-recent-first.
	worksFor := person.children("worksFor")
	if len(worksFor) > 0 {
		rec.CurrentEmployer = worksFor[0].str("name")
		if member, ok := worksFor[0].child("member"); ok {
			rec.CurrentTitle = member.str("description")
		}
	}
	if rec.CurrentTitle == "" && len(rec.JobTitles) > 0 {
		rec.CurrentTitle = rec.JobTitles[0]
	}

	// The source files work history under alumniOf alongside real
	// education; only entries explicitly typed as an educational
	// organization are education, the rest are mis-filed jobs.
	for _, item := range person.children("alumniOf") {
		name := item.str("name")
		if item.hasType(typeEducational) {
			entry := model.EducationEntry{
				Institution: name,
				URL:         item.str("url"),
				Location:    item.str("location"),
				Kind:        model.EntryKindEducation,
			}
			if member, ok := item.child("member"); ok {
				entry.StartDate = member.str("startDate")
				entry.EndDate = member.str("endDate")
				entry.Description = member.str("description")
			}
			rec.AddEducation(entry)
			continue
		}
		rec.AddExperience(organizationRole(item, name))
	}

	for _, job := range worksFor {
		rec.AddExperience(organizationRole(job, job.str("name")))
	}

	rec.BackfillCurrentPosition()
	return rec
}

// organizationRole converts an organization node with an optional
// member role into a work-experience entry.
func organizationRole(org jsonNode, name string) model.ExperienceEntry {
	entry := model.ExperienceEntry{
		Organization: name,
		URL:          org.str("url"),
		Location:     org.str("location"),
		Kind:         model.EntryKindWork,
	}
	if member, ok := org.child("member"); ok {
		entry.StartDate = member.str("startDate")
		entry.EndDate = member.str("endDate")
		entry.Description = member.str("description")
	}
	return entry
}

// composeLocation builds "locality, country" from the address
// sub-object, degrading to whichever part is present.
func composeLocation(person jsonNode) string {
	address, ok := person.child("address")
	if !ok {
		return ""
	}
	locality := address.str("addressLocality")
	country := address.str("addressCountry")
	switch {
	case locality != "" && country != "":
		return locality + ", " + country
	case locality != "":
		return locality
	default:
		return country
	}
}

// followerCount reads the follow counter from interactionStatistic,
// which appears both as a single object and as a list.
func followerCount(person jsonNode) *int {
	for _, stat := range person.children("interactionStatistic") {
		if stat.str("name") != followCounterKey {
			continue
		}
		if count, ok := stat["userInteractionCount"].(float64); ok && count >= 0 {
			n := int(count)
			return &n
		}
	}
	return nil
}
