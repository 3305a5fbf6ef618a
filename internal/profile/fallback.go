package profile

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/model"
)

// Selector cascades for scalar fields, ordered most-stable first. The
// target site renames classes often; each list carries the variants
// observed across markup generations.
var (
	nameSelectors = []string{
		"h1.text-heading-xlarge",
		".pv-text-details__left-panel h1",
		".pv-top-card--list-bullet h1",
		`h1[data-section="name"]`,
		".pv-top-card__non-inline-text",
		"h1",
		".pv-top-card h1",
	}

	headlineSelectors = []string{
		".top-card-layout__headline",
		".pv-top-card__headline",
		".pv-text-details__left-panel .text-body-medium",
		".pv-top-card--list-bullet .text-body-medium",
		"h2.top-card-layout__headline",
		".text-heading-medium",
	}

	jobTitleSelectors = []string{
		".text-body-medium.break-words",
		".pv-text-details__left-panel .text-body-medium",
		".pv-top-card--list-bullet .text-body-medium",
		`[data-section="headline"]`,
		".pv-top-card .text-body-medium",
		".pv-top-card__headline",
	}

	locationSelectors = []string{
		".pv-text-details__left-panel .text-body-small",
		".pv-top-card--list-bullet .text-body-small",
		`[data-section="location"]`,
		".pv-top-card .text-body-small",
	}

	summarySelectors = []string{
		`[data-section="summary"] .pv-shared-text-with-see-more`,
		".pv-about__summary-text",
		".pv-shared-text-with-see-more",
		".pv-about__summary",
		".pv-top-card__summary",
	}

	languageSelectors = []string{
		`[data-section="languages"] .pvs-list__item--line-separated`,
		".language__name",
	}

	currentJobSelectors = []string{
		".pv-top-card__experience-list .pv-top-card__experience-list-item",
		".pv-top-card__experience-list .pvs-list__item--line-separated",
		".pv-top-card .text-body-medium",
		".pv-top-card__headline",
		".pv-text-details__left-panel .text-body-medium",
		".pv-top-card--list-bullet .text-body-medium",
	}

	skillSelectors = []string{
		`[data-section="skills"] .pvs-list__item--line-separated`,
		".skill-categories-section .pvs-list__item--line-separated",
	}
)

// Section anchors and per-item sub-cascades for list-valued sections.
var (
	educationSectionSelectors = []string{
		`[data-section="educationsDetails"] .education__list-item`,
		`[data-section="education"] .pvs-list__item--line-separated`,
		".pv-education-entity",
	}

	experienceSectionSelectors = []string{
		`[data-section="experience"] .pvs-list__item--line-separated`,
		".pv-position-entity",
	}

	volunteeringSectionSelectors = []string{
		`[data-section="volunteering"] .pvs-list__item--line-separated`,
		".volunteering__organization-name",
	}

	certificationSectionSelectors = []string{
		`[data-section="certifications"] .pvs-list__item--line-separated`,
		".certification__name",
	}

	institutionItemSelectors = []string{
		".pvs-entity__path-node",
		".education__school-name",
		".pv-entity__school-name",
		".pv-entity__summary-info h3",
		"h3",
		".pvs-entity__path-node span",
	}

	organizationItemSelectors = []string{
		".pvs-entity__path-node",
		".experience__company-name",
		".pv-entity__company-name",
		".pv-entity__summary-info h3",
		"h3",
		".pvs-entity__path-node span",
	}

	roleItemSelectors = []string{
		".pvs-entity__path-node + span",
		".pvs-entity__path-node span",
		".pv-entity__summary-info h4",
		".pv-entity__title",
		"h4",
	}

	credentialItemSelectors = []string{
		".pv-entity__degree-name",
		".pv-entity__secondary-title",
		".pvs-entity__path-node + span",
		".pvs-entity__path-node span",
	}

	dateRangeItemSelectors = []string{
		".pvs-entity__caption-wrapper",
		".experience__duration",
		".education__duration",
		".pv-entity__dates",
		".pv-entity__date-range",
	}

	descriptionItemSelectors = []string{
		".pvs-entity__description",
		".experience__description",
		".education__description",
		".pv-entity__description",
		".pv-entity__extra-details",
	}
)

const titleCompanySeparator = " at "

// supplement fills every empty field of rec from direct HTML scraping.
// Populated fields are never overwritten: the structured-metadata pass
// is the higher-trust source and its values stand.
func supplement(doc *goquery.Document, rec *model.ProfileRecord) {
	root := doc.Selection

	if rec.DisplayName == "" || rec.DisplayName == model.UnknownName {
		if name, ok := ResolveText(root, nameSelectors, 1, 100); ok {
			rec.DisplayName = name
		}
	}
	if rec.Headline == "" {
		if headline, ok := ResolveText(root, headlineSelectors, 1, 500); ok {
			rec.Headline = headline
		}
	}
	if len(rec.JobTitles) == 0 {
		rec.JobTitles = ResolveEach(root, jobTitleSelectors, 1, 0)
	}
	if rec.Location == "" {
		rec.Location = scrapeLocation(root)
	}
	if rec.Summary == "" {
		if summary, ok := ResolveText(root, summarySelectors, 1, 0); ok {
			rec.Summary = summary
		}
	}
	if len(rec.Languages) == 0 {
		rec.Languages = ResolveEach(root, languageSelectors, 1, 0)
	}

	mergeEducation(root, rec)
	mergeExperience(root, rec)
	mergeVolunteering(root, rec)
	mergeCertifications(root, rec)

	// Skill text on these pages is too unreliable to persist; it is
	// scraped for diagnostics only and never stored on the record.
	if skills := scrapeSkills(root); len(skills) > 0 {
		zap.L().Debug("profile: discarding scraped skills", zap.Int("count", len(skills)))
	}

	if rec.CurrentEmployer == "" || rec.CurrentTitle == "" {
		title, employer := scrapeCurrentPosition(root)
		if rec.CurrentTitle == "" {
			rec.CurrentTitle = title
		}
		if rec.CurrentEmployer == "" {
			rec.CurrentEmployer = employer
		}
	}

	// Re-check after the HTML merge: this pass may have added the only
	// ongoing entry available.
	rec.BackfillCurrentPosition()
}

// scrapeLocation accepts a cascade hit only when it looks like a
// place string, since the same text classes carry other top-card rows.
func scrapeLocation(root *goquery.Selection) string {
	for _, selector := range locationSelectors {
		text := strings.TrimSpace(root.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if strings.Contains(text, ",") || strings.Contains(strings.ToLower(text), "location") {
			return text
		}
	}
	return ""
}

// scrapeCurrentPosition parses the top-card position text. A combined
// "Title at Company" string is split on the literal separator; text
// without the separator is treated as title only.
func scrapeCurrentPosition(root *goquery.Selection) (title, employer string) {
	text, ok := ResolveText(root, currentJobSelectors, 4, 0)
	if !ok {
		return "", ""
	}
	if idx := strings.Index(text, titleCompanySeparator); idx >= 0 {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+len(titleCompanySeparator):])
	}
	return text, ""
}

func mergeEducation(root *goquery.Selection, rec *model.ProfileRecord) {
	sections := resolveSections(root, educationSectionSelectors)
	if sections == nil {
		return
	}
	sections.Each(func(_ int, item *goquery.Selection) {
		institution, _ := ResolveText(item, institutionItemSelectors, 3, 0)
		credential, _ := ResolveText(item, credentialItemSelectors, 3, 0)
		if institution == "" && credential == "" {
			return
		}
		dateRange, _ := ResolveText(item, dateRangeItemSelectors, 1, 0)
		description, _ := ResolveText(item, descriptionItemSelectors, 1, 0)
		rec.AddEducation(model.EducationEntry{
			Institution: institution,
			Credential:  credential,
			DateRange:   dateRange,
			Description: description,
			Kind:        model.EntryKindEducation,
		})
	})
}

func mergeExperience(root *goquery.Selection, rec *model.ProfileRecord) {
	sections := resolveSections(root, experienceSectionSelectors)
	if sections == nil {
		return
	}
	sections.Each(func(_ int, item *goquery.Selection) {
		organization, _ := ResolveText(item, organizationItemSelectors, 3, 0)
		title, _ := ResolveText(item, roleItemSelectors, 3, 0)
		if organization == "" && title == "" {
			return
		}
		dateRange, _ := ResolveText(item, dateRangeItemSelectors, 1, 0)
		description, _ := ResolveText(item, descriptionItemSelectors, 1, 0)
		rec.AddExperience(model.ExperienceEntry{
			Organization: organization,
			Title:        title,
			DateRange:    dateRange,
			Description:  description,
			Kind:         model.EntryKindWork,
		})
	})
}

func mergeVolunteering(root *goquery.Selection, rec *model.ProfileRecord) {
	sections := resolveSections(root, volunteeringSectionSelectors)
	if sections == nil {
		return
	}
	sections.Each(func(_ int, item *goquery.Selection) {
		organization, _ := ResolveText(item, organizationItemSelectors, 1, 0)
		title, _ := ResolveText(item, roleItemSelectors, 1, 0)
		if organization == "" && title == "" {
			return
		}
		dateRange, _ := ResolveText(item, dateRangeItemSelectors, 1, 0)
		description, _ := ResolveText(item, descriptionItemSelectors, 1, 0)
		rec.AddExperience(model.ExperienceEntry{
			Organization: organization,
			Title:        title,
			DateRange:    dateRange,
			Description:  description,
			Kind:         model.EntryKindVolunteering,
		})
	})
}

func mergeCertifications(root *goquery.Selection, rec *model.ProfileRecord) {
	sections := resolveSections(root, certificationSectionSelectors)
	if sections == nil {
		return
	}
	sections.Each(func(_ int, item *goquery.Selection) {
		credential, _ := ResolveText(item, institutionItemSelectors, 1, 0)
		issuer, _ := ResolveText(item, roleItemSelectors, 1, 0)
		if credential == "" {
			return
		}
		dateRange, _ := ResolveText(item, dateRangeItemSelectors, 1, 0)
		rec.AddEducation(model.EducationEntry{
			Institution: issuer,
			Credential:  credential,
			DateRange:   dateRange,
			Kind:        model.EntryKindCertification,
		})
	})
}

func scrapeSkills(root *goquery.Selection) []string {
	return ResolveEach(root, skillSelectors, 1, 100)
}
