package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadqual/internal/model"
)

const sampleCSV = `FirstName,LastName,Title,CompanyName,Industry,Country,AllTimePageViews,WorkEmail,Website,LinkedInUrl
Jane,Doe,VP Operations,Acme Corp,Manufacturing,US,14,jane@acme.example.com,acme.example.com,https://www.linkedin.com/in/jane-doe/
Sam,Smith,,Widget Co,,US,3,,,linkedin.com/in/sam-smith?trk=feed
,,,n/a,,,,,,
`

func TestParseVisitors(t *testing.T) {
	visitors, err := ParseVisitors(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, visitors, 3)

	jane := visitors[0]
	assert.Equal(t, 2, jane.Row)
	assert.Equal(t, "Jane", jane.FirstName)
	assert.Equal(t, "VP Operations", jane.Title)
	assert.Equal(t, "Acme Corp", jane.Company)
	assert.Equal(t, 14, jane.VisitCount)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe", jane.LinkedInURL)

	sam := visitors[1]
	assert.Equal(t, 3, sam.Row)
	assert.Equal(t, "https://www.linkedin.com/in/sam-smith", sam.LinkedInURL)

	// Placeholder cells are blanked.
	assert.Empty(t, visitors[2].Company)
}

func TestParseVisitorsSnakeCaseHeaders(t *testing.T) {
	csv := "first_name,last_name,company,visit_count\nJane,Doe,Acme Corp,7\n"
	visitors, err := ParseVisitors(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, visitors, 1)

	assert.Equal(t, "Jane", visitors[0].FirstName)
	assert.Equal(t, 7, visitors[0].VisitCount)
}

func TestParseVisitorsEmptyInput(t *testing.T) {
	_, err := ParseVisitors(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty csv")
}

func TestParseVisitorsUnrecognizedHeader(t *testing.T) {
	_, err := ParseVisitors(strings.NewReader("foo,bar\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognized columns")
}

func TestParseRowSelection(t *testing.T) {
	rows, err := ParseRowSelection("2, 5,9")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 9}, rows)

	rows, err = ParseRowSelection("")
	require.NoError(t, err)
	assert.Nil(t, rows)

	rows, err = ParseRowSelection("all")
	require.NoError(t, err)
	assert.Nil(t, rows)

	// The header is line 1; selecting it is an operator mistake.
	_, err = ParseRowSelection("1")
	require.Error(t, err)

	_, err = ParseRowSelection("2,x")
	require.Error(t, err)
}

func TestSelectRows(t *testing.T) {
	visitors := []model.Visitor{{Row: 2}, {Row: 3}, {Row: 4}}

	assert.Len(t, SelectRows(visitors, nil), 3)

	selected := SelectRows(visitors, []int{2, 4, 99})
	require.Len(t, selected, 2)
	assert.Equal(t, 2, selected[0].Row)
	assert.Equal(t, 4, selected[1].Row)
}

func TestFilterResearchable(t *testing.T) {
	visitors := []model.Visitor{
		{Row: 2, FirstName: "Jane", Company: "Acme"},
		{Row: 3},
		{Row: 4, LinkedInURL: "https://www.linkedin.com/in/sam"},
		{Row: 5, Company: "Nameless Inc"},
	}

	out := FilterResearchable(visitors)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Row)
	assert.Equal(t, 4, out[1].Row)
}

func TestNormalizeLinkedInURL(t *testing.T) {
	cases := map[string]string{
		"https://www.linkedin.com/in/jane-doe/":        "https://www.linkedin.com/in/jane-doe",
		"http://www.linkedin.com/in/jane-doe":          "https://www.linkedin.com/in/jane-doe",
		"linkedin.com/in/jane-doe?trk=profile#section": "https://linkedin.com/in/jane-doe",
		"  www.linkedin.com/in/jane-doe  ":             "https://www.linkedin.com/in/jane-doe",
		"n/a":                                          "",
		"nan":                                          "",
		"":                                             "",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeLinkedInURL(input), "input %q", input)
	}
}
