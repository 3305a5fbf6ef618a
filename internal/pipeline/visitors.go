package pipeline

import (
	"encoding/csv"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/model"
)

// headerAliases maps normalized CSV header names to visitor fields.
// Tracker exports vary: RB2B uses CamelCase ("CompanyName",
// "AllTimePageViews"), other tools use snake_case.
var headerAliases = map[string]string{
	"firstname":        "first_name",
	"first":            "first_name",
	"lastname":         "last_name",
	"last":             "last_name",
	"title":            "title",
	"jobtitle":         "title",
	"companyname":      "company",
	"company":          "company",
	"industry":         "industry",
	"country":          "country",
	"alltimepageviews": "visit_count",
	"visitcount":       "visit_count",
	"pageviews":        "visit_count",
	"workemail":        "email",
	"email":            "email",
	"website":          "website",
	"linkedinurl":      "linkedin_url",
	"linkedin":         "linkedin_url",
}

// ParseVisitors reads a lead-capture CSV export. Column order is free;
// headers are matched case-insensitively through headerAliases. Row is
// the 1-based file line number (header is line 1), so operators can
// select rows using the numbers their spreadsheet shows.
func ParseVisitors(r io.Reader) ([]model.Visitor, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("visitors: empty csv")
	}
	if err != nil {
		return nil, eris.Wrap(err, "visitors: read header")
	}

	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(h)))
		if field, ok := headerAliases[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if len(cols) == 0 {
		return nil, eris.New("visitors: no recognized columns in header")
	}

	field := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return cleanCell(record[idx])
	}

	var visitors []model.Visitor
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "visitors: read line %d", line)
		}

		v := model.Visitor{
			Row:         line,
			FirstName:   field(record, "first_name"),
			LastName:    field(record, "last_name"),
			Title:       field(record, "title"),
			Company:     field(record, "company"),
			Industry:    field(record, "industry"),
			Country:     field(record, "country"),
			Email:       field(record, "email"),
			Website:     field(record, "website"),
			LinkedInURL: NormalizeLinkedInURL(field(record, "linkedin_url")),
		}
		if n, err := strconv.Atoi(field(record, "visit_count")); err == nil {
			v.VisitCount = n
		}
		visitors = append(visitors, v)
	}

	zap.L().Info("visitors: parsed csv", zap.Int("rows", len(visitors)))
	return visitors, nil
}

// ParseRowSelection parses an operator row selection like "2,5,9" into
// file line numbers. An empty spec selects everything (nil result).
func ParseRowSelection(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "all") {
		return nil, nil
	}

	var rows []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 2 {
			return nil, eris.Errorf("visitors: invalid row selection %q", part)
		}
		rows = append(rows, n)
	}
	return rows, nil
}

// SelectRows filters visitors to the given file line numbers. A nil
// selection returns the input unchanged.
func SelectRows(visitors []model.Visitor, rows []int) []model.Visitor {
	if rows == nil {
		return visitors
	}
	want := make(map[int]bool, len(rows))
	for _, r := range rows {
		want[r] = true
	}
	var out []model.Visitor
	for _, v := range visitors {
		if want[v.Row] {
			out = append(out, v)
		}
	}
	return out
}

// FilterResearchable drops rows without enough identity to qualify,
// logging each skip so the operator can fix the export.
func FilterResearchable(visitors []model.Visitor) []model.Visitor {
	var out []model.Visitor
	for _, v := range visitors {
		if !v.Researchable() {
			zap.L().Debug("visitors: skipping row without identity",
				zap.Int("row", v.Row),
				zap.String("company", v.Company),
			)
			continue
		}
		out = append(out, v)
	}
	if skipped := len(visitors) - len(out); skipped > 0 {
		zap.L().Info("visitors: filtered rows without identity",
			zap.Int("total", len(visitors)),
			zap.Int("skipped", skipped),
		)
	}
	return out
}

// NormalizeLinkedInURL canonicalizes a profile URL from a CSV cell:
// placeholder values become empty, the scheme is forced to https, and
// query/fragment noise from tracker exports is stripped.
func NormalizeLinkedInURL(raw string) string {
	raw = cleanCell(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = "https"
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// cleanCell trims a CSV cell and blanks the placeholder values pandas
// and tracker exports leave behind.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "n/a", "na", "nan", "none", "null", "-":
		return ""
	}
	return s
}
