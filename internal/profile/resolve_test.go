package profile

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Selection
}

func TestResolveTextCascadeOrder(t *testing.T) {
	root := mustDoc(t, `<div><p class="b">second</p><p class="a">first</p></div>`)

	text, ok := ResolveText(root, []string{".a", ".b"}, 1, 0)
	require.True(t, ok)
	assert.Equal(t, "first", text)
}

func TestResolveTextFallsThroughOnMiss(t *testing.T) {
	root := mustDoc(t, `<div><p class="b">found</p></div>`)

	text, ok := ResolveText(root, []string{".missing", ".b"}, 1, 0)
	require.True(t, ok)
	assert.Equal(t, "found", text)
}

func TestResolveTextLengthBounds(t *testing.T) {
	root := mustDoc(t, `<div><p class="a">x</p><p class="b">long enough</p></div>`)

	text, ok := ResolveText(root, []string{".a", ".b"}, 3, 0)
	require.True(t, ok)
	assert.Equal(t, "long enough", text)

	_, ok = ResolveText(root, []string{".b"}, 1, 5)
	assert.False(t, ok)
}

func TestResolveTextAllMiss(t *testing.T) {
	root := mustDoc(t, `<div></div>`)

	text, ok := ResolveText(root, []string{".a", ".b"}, 1, 0)
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestResolveEachDeduplicates(t *testing.T) {
	root := mustDoc(t, `<ul>
		<li class="x">English</li>
		<li class="x">Spanish</li>
		<li class="y">English</li>
		<li class="y">French</li>
	</ul>`)

	items := ResolveEach(root, []string{".x", ".y"}, 1, 0)
	assert.Equal(t, []string{"English", "Spanish", "French"}, items)
}

func TestResolveSectionsMostSpecificFirst(t *testing.T) {
	root := mustDoc(t, `<div>
		<section data-kind="new"><div class="item">a</div><div class="item">b</div></section>
		<div class="legacy">c</div>
	</div>`)

	found := resolveSections(root, []string{`[data-kind="new"] .item`, ".legacy"})
	require.NotNil(t, found)
	assert.Equal(t, 2, found.Length())

	found = resolveSections(root, []string{".absent", ".legacy"})
	require.NotNil(t, found)
	assert.Equal(t, 1, found.Length())

	assert.Nil(t, resolveSections(root, []string{".absent"}))
}
