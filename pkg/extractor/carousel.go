package extractor

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"postgrab/pkg/models"
	"postgrab/pkg/retry"
)

// navigateCarousel pages through a multi-image post by following the
// DOM-discovered "next" control, waiting a fixed delay for content, and
// rescanning for newly visible images. It stops when no control is found,
// when several consecutive rescans add nothing, or at the page cap.
func (s *scraper) navigateCarousel(
	ctx context.Context,
	base *url.URL,
	doc *goquery.Document,
	f imageFilter,
	seen map[string]bool,
	images []models.ImageDescriptor,
) []models.ImageDescriptor {
	current := doc
	currentBase := base
	stale := 0

	for page := 0; page < s.cfg.CarouselMaxPages; page++ {
		if stale >= s.cfg.CarouselMaxStale {
			s.logger.DebugWithFields("carousel exhausted", map[string]interface{}{
				"platform": string(s.profile.platform),
				"stale":    stale,
			})
			break
		}

		next := findNextControl(current, s.profile.nextSelectors)
		if next == "" {
			break
		}
		nextURL := resolveURL(currentBase, next)
		if nextURL == "" || seenPage(seen, nextURL) {
			break
		}
		seen["page:"+nextURL] = true

		// Fixed delay; async carousel content has no load event to hook.
		if err := retry.Wait(ctx, s.cfg.CarouselDelay); err != nil {
			break
		}

		newDoc, err := s.fetcher.FreshDocument(ctx, nextURL)
		if err != nil {
			s.logger.WarnWithFields("carousel page fetch failed", map[string]interface{}{
				"url":   nextURL,
				"error": err.Error(),
			})
			break
		}

		root := firstMatch(newDoc, s.profile.rootSelectors)
		if root == nil {
			break
		}
		boundary := findBoundary(newDoc, s.profile.boundaryMarkers)

		before := len(images)
		images = collectInto(root, boundary, currentBase, s.profile.platform, f, seen, images)
		if len(images) == before {
			stale++
		} else {
			stale = 0
		}

		current = newDoc
		if u, err := url.Parse(nextURL); err == nil {
			currentBase = u
		}
	}
	return images
}

// findNextControl looks for a navigable "next" control and returns its href.
// Buttons without hrefs cannot be followed from static markup and count as
// no control found.
func findNextControl(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var href string
		doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if h, ok := el.Attr("href"); ok && h != "" && h != "#" {
				href = h
				return false
			}
			return true
		})
		if href != "" {
			return href
		}
	}
	return ""
}

func seenPage(seen map[string]bool, pageURL string) bool {
	return seen["page:"+pageURL]
}
