package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestFindBoundaryMatchesOwnText(t *testing.T) {
	doc := docFrom(t, `<html><body>
<div><span>post caption</span></div>
<h2>More replies</h2>
<div>comment content</div>
</body></html>`)

	b := findBoundary(doc, []string{"more replies"})
	require.NotNil(t, b)
	assert.Equal(t, "h2", goquery.NodeName(b))
}

func TestFindBoundaryIgnoresNestedText(t *testing.T) {
	// The marker lives in a child; the wrapping div's own text is empty and
	// must not match, otherwise the boundary would swallow the whole page.
	doc := docFrom(t, `<html><body>
<div id="wrap"><p>unrelated</p><span>Related threads</span></div>
</body></html>`)

	b := findBoundary(doc, []string{"related threads"})
	require.NotNil(t, b)
	assert.Equal(t, "span", goquery.NodeName(b))
}

func TestFindBoundaryNoMarker(t *testing.T) {
	doc := docFrom(t, `<html><body><p>nothing special</p></body></html>`)
	assert.Nil(t, findBoundary(doc, []string{"more replies"}))
}

func TestNodeAfterDocumentOrder(t *testing.T) {
	doc := docFrom(t, `<html><body>
<img id="before" src="https://a.example/1.jpg">
<span id="marker">More replies</span>
<img id="after" src="https://a.example/2.jpg">
</body></html>`)

	marker := doc.Find("#marker")
	require.Equal(t, 1, marker.Length())

	assert.False(t, nodeAfter(doc.Find("#before"), marker))
	assert.True(t, nodeAfter(doc.Find("#after"), marker))
	assert.True(t, nodeAfter(marker, marker), "the boundary itself is excluded")
}
