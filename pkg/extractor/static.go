package extractor

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
	"postgrab/pkg/models"
)

// StaticScraper is the fallback detection strategy: collect every
// sufficiently large image on the page with no platform-specific knowledge.
// The registry runs it when a platform scraper fails or finds nothing.
type StaticScraper struct {
	fetcher Fetcher
	cfg     config.ExtractionConfig
	logger  logger.Logger
}

// NewStatic creates the fallback scraper.
func NewStatic(fetcher Fetcher, cfg config.ExtractionConfig, log logger.Logger) *StaticScraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &StaticScraper{fetcher: fetcher, cfg: cfg, logger: log}
}

func (s *StaticScraper) Platform() models.Platform { return models.PlatformUnknown }

// Supports accepts any URL; static detection has no platform predicate.
func (s *StaticScraper) Supports(*url.URL) bool { return true }

// WaitReady succeeds as soon as the page fetches; static detection does not
// wait for platform-specific anchors.
func (s *StaticScraper) WaitReady(ctx context.Context, pageURL string) error {
	_, err := s.fetcher.Document(ctx, pageURL)
	return err
}

// Extract scans the whole body for plausible content images, applying only
// the common exclusion lists and the minimum-size filter.
func (s *StaticScraper) Extract(ctx context.Context, pageURL string) ([]models.ImageDescriptor, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, errs.New(errs.KindValidation, "invalid page URL %q", pageURL)
	}

	doc, err := s.fetcher.Document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	platform := platformForURL(base)
	f := imageFilter{
		minSize:       s.cfg.MinImageSize,
		altExclusions: commonAltExclusions,
		urlExclusions: commonURLExclusions,
	}

	seen := make(map[string]bool)
	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}
	images := collectImages(body, nil, base, platform, f, seen)

	now := time.Now().UTC()
	for i := range images {
		images[i].ExtractedAt = now
		images[i].Metadata["method"] = "static"
		images[i].Metadata["position"] = strconv.Itoa(i)
	}

	s.logger.DebugWithFields("static detection complete", map[string]interface{}{
		"url":    pageURL,
		"images": len(images),
	})
	return images, nil
}

func platformForURL(u *url.URL) models.Platform {
	if u == nil {
		return models.PlatformUnknown
	}
	// Light duplicate of the fetch-side mapping to avoid an import cycle.
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "threads."):
		return models.PlatformThreads
	case strings.Contains(host, "instagram."):
		return models.PlatformInstagram
	case strings.Contains(host, "facebook.") || host == "fb.com":
		return models.PlatformFacebook
	case strings.Contains(host, "twitter."), host == "x.com", strings.HasSuffix(host, ".x.com"):
		return models.PlatformTwitter
	default:
		return models.PlatformUnknown
	}
}
