package extractor

import (
	"context"
	"net/url"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
	"postgrab/pkg/models"
)

// Registry routes a page URL to its platform scraper and falls back to
// static detection when the platform heuristics come up empty.
type Registry struct {
	scrapers []PageScraper
	fallback PageScraper
	logger   logger.Logger
}

// NewRegistry wires the four platform scrapers plus the static fallback.
func NewRegistry(fetcher Fetcher, cfg config.ExtractionConfig, log logger.Logger) *Registry {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Registry{
		scrapers: []PageScraper{
			NewThreads(fetcher, cfg, log),
			NewInstagram(fetcher, cfg, log),
			NewFacebook(fetcher, cfg, log),
			NewTwitter(fetcher, cfg, log),
		},
		fallback: NewStatic(fetcher, cfg, log),
		logger:   log,
	}
}

// Register adds a custom scraper, tried before the built-in ones.
func (r *Registry) Register(s PageScraper) {
	r.scrapers = append([]PageScraper{s}, r.scrapers...)
}

// ScraperFor returns the first scraper supporting the URL, nil if none.
func (r *Registry) ScraperFor(u *url.URL) PageScraper {
	for _, s := range r.scrapers {
		if s.Supports(u) {
			return s
		}
	}
	return nil
}

// ExtractImages resolves the platform scraper, waits for readiness, and
// extracts. Platform failures and empty results fall back to static
// detection before an extraction error is surfaced. An URL no scraper
// supports is a terminal unsupported-platform error with no fallback.
func (r *Registry) ExtractImages(ctx context.Context, pageURL string) ([]models.ImageDescriptor, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errs.New(errs.KindValidation, "invalid post URL %q", pageURL)
	}

	s := r.ScraperFor(u)
	if s == nil {
		return nil, errs.New(errs.KindUnsupported, "no extractor supports host %q", u.Hostname())
	}

	log := r.logger.WithFields(map[string]interface{}{
		"platform": string(s.Platform()),
		"url":      pageURL,
	})

	if err := s.WaitReady(ctx, pageURL); err != nil {
		log.WithError(err).Warn("page readiness check failed, trying static detection")
		return r.extractStatic(ctx, pageURL)
	}

	images, err := s.Extract(ctx, pageURL)
	if err != nil {
		log.WithError(err).Warn("platform extraction failed, trying static detection")
		return r.extractStatic(ctx, pageURL)
	}
	if len(images) == 0 {
		log.Warn("platform extraction found no images, trying static detection")
		return r.extractStatic(ctx, pageURL)
	}

	log.WithField("images", len(images)).Info("extraction completed")
	return images, nil
}

func (r *Registry) extractStatic(ctx context.Context, pageURL string) ([]models.ImageDescriptor, error) {
	images, err := r.fallback.Extract(ctx, pageURL)
	if err != nil {
		return nil, errs.Wrap(errs.KindExtraction, err, "static detection failed for %s", pageURL)
	}
	if len(images) == 0 {
		return nil, errs.New(errs.KindExtraction, "no images found on %s", pageURL)
	}
	return images, nil
}
