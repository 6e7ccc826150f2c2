// Package extractor locates main-post images on social media post pages.
//
// Each platform is a prioritized list of CSS selectors, alt-text/URL
// exclusion filters, and a boundary marker that cuts off comment and
// recommendation sections. The heuristics track live third-party markup;
// they aim to be reproducible, not provably correct.
package extractor

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
	"postgrab/pkg/models"
	"postgrab/pkg/retry"
)

// Fetcher provides parsed pages to the scrapers.
type Fetcher interface {
	// Document may serve a recently cached parse of the page.
	Document(ctx context.Context, pageURL string) (*goquery.Document, error)
	// FreshDocument always refetches; readiness polls and carousel rescans
	// need to observe newly loaded content.
	FreshDocument(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// PageScraper extracts the main-post images for one platform. Variants are
// swappable so tests can run against fixture pages.
type PageScraper interface {
	Platform() models.Platform
	// Supports reports whether this scraper handles the given page URL.
	Supports(u *url.URL) bool
	// WaitReady polls the page until its anchor element appears or the
	// readiness timeout elapses.
	WaitReady(ctx context.Context, pageURL string) error
	// Extract returns the ordered main-post images.
	Extract(ctx context.Context, pageURL string) ([]models.ImageDescriptor, error)
}

// profile is the per-platform heuristic parameter set.
type profile struct {
	platform models.Platform
	// hosts are hostname suffixes this scraper claims.
	hosts []string
	// pathHint, when set, must appear in the URL path (post pages only).
	pathHint string
	// readySelector is the anchor element the readiness poll waits for.
	readySelector string
	// rootSelectors locate the post container; first match wins.
	rootSelectors []string
	// nextSelectors locate the carousel "next" control.
	nextSelectors []string
	// boundaryMarkers are text markers after which images belong to
	// comments or recommendations, not the post.
	boundaryMarkers []string
	altExclusions   []string
	urlExclusions   []string
}

// scraper drives the shared extraction routine over one platform profile.
type scraper struct {
	profile profile
	fetcher Fetcher
	cfg     config.ExtractionConfig
	logger  logger.Logger
}

func newScraper(p profile, fetcher Fetcher, cfg config.ExtractionConfig, log logger.Logger) *scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &scraper{profile: p, fetcher: fetcher, cfg: cfg, logger: log}
}

func (s *scraper) Platform() models.Platform { return s.profile.platform }

func (s *scraper) Supports(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	for _, h := range s.profile.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			if s.profile.pathHint == "" || strings.Contains(u.Path, s.profile.pathHint) {
				return true
			}
		}
	}
	return false
}

// WaitReady refetches the page at a fixed interval until the anchor selector
// matches. A timed-out wait resolves to a not-ready error, never a panic.
func (s *scraper) WaitReady(ctx context.Context, pageURL string) error {
	deadline := time.Now().Add(s.cfg.ReadyTimeout)
	var lastErr error

	for {
		doc, err := s.fetcher.FreshDocument(ctx, pageURL)
		if err == nil {
			if doc.Find(s.profile.readySelector).Length() > 0 {
				return nil
			}
			lastErr = errs.New(errs.KindNotReady, "anchor %q not found on %s", s.profile.readySelector, pageURL)
		} else {
			lastErr = err
		}

		if time.Now().After(deadline) {
			return errs.Wrap(errs.KindNotReady, lastErr, "page %s not ready after %s", pageURL, s.cfg.ReadyTimeout)
		}
		if err := retry.Wait(ctx, s.cfg.ReadyInterval); err != nil {
			return errs.Wrap(errs.KindTimeout, err, "readiness wait cancelled")
		}
	}
}

// Extract runs the heuristic pipeline: root container, candidate collection,
// carousel navigation, boundary truncation, srcset resolution.
func (s *scraper) Extract(ctx context.Context, pageURL string) ([]models.ImageDescriptor, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, errs.New(errs.KindValidation, "invalid page URL %q", pageURL)
	}

	doc, err := s.fetcher.Document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	root := firstMatch(doc, s.profile.rootSelectors)
	if root == nil {
		return nil, errs.New(errs.KindExtraction, "no post container matched on %s", pageURL)
	}

	f := imageFilter{
		minSize:       s.cfg.MinImageSize,
		altExclusions: append(commonAltExclusions, s.profile.altExclusions...),
		urlExclusions: append(commonURLExclusions, s.profile.urlExclusions...),
	}

	seen := make(map[string]bool)
	boundary := findBoundary(doc, s.profile.boundaryMarkers)
	images := collectImages(root, boundary, base, s.profile.platform, f, seen)

	s.logger.DebugWithFields("initial scan complete", map[string]interface{}{
		"platform": string(s.profile.platform),
		"url":      pageURL,
		"images":   len(images),
	})

	images = s.navigateCarousel(ctx, base, doc, f, seen, images)

	for i := range images {
		if images[i].Metadata == nil {
			images[i].Metadata = make(map[string]string)
		}
		images[i].Metadata["position"] = strconv.Itoa(i)
	}
	return images, nil
}

// firstMatch returns the first non-empty selection from a prioritized
// selector list.
func firstMatch(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if m := doc.Find(sel).First(); m.Length() > 0 {
			return m
		}
	}
	return nil
}

