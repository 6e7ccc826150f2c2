package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// findBoundary locates the first element whose own text contains one of the
// platform's boundary markers ("More posts from…" and the like). Images at
// or after that element in document order belong to comments or
// recommendations, not the main post.
func findBoundary(doc *goquery.Document, markers []string) *goquery.Selection {
	if len(markers) == 0 {
		return nil
	}

	var found *goquery.Selection
	doc.Find("span, div, h2, h3, h4, a, p").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(ownText(el)))
		if text == "" {
			return true
		}
		for _, m := range markers {
			if strings.Contains(text, strings.ToLower(m)) {
				found = el
				return false
			}
		}
		return true
	})
	return found
}

// ownText returns only the element's direct text nodes, so a marker deep in
// the page doesn't make every ancestor match.
func ownText(el *goquery.Selection) string {
	if el.Length() == 0 {
		return ""
	}
	var b strings.Builder
	for c := el.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// nodeAfter reports whether el appears at or after boundary in document
// order. Elements inside the boundary element count as after it.
func nodeAfter(el, boundary *goquery.Selection) bool {
	if el.Length() == 0 || boundary.Length() == 0 {
		return false
	}
	a := el.Get(0)
	b := boundary.Get(0)
	if a == b {
		return true
	}

	root := b
	for root.Parent != nil {
		root = root.Parent
	}
	return firstEncountered(root, a, b) == b
}

// firstEncountered walks the tree depth-first and returns whichever of a or
// b it reaches first, or nil if neither is under n.
func firstEncountered(n, a, b *html.Node) *html.Node {
	if n == a {
		return a
	}
	if n == b {
		return b
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := firstEncountered(c, a, b); f != nil {
			return f
		}
	}
	return nil
}
