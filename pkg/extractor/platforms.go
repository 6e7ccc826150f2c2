package extractor

import (
	"postgrab/pkg/config"
	"postgrab/pkg/logger"
	"postgrab/pkg/models"
)

// NewThreads scrapes threads.net / threads.com post pages.
func NewThreads(fetcher Fetcher, cfg config.ExtractionConfig, log logger.Logger) PageScraper {
	return newScraper(profile{
		platform:      models.PlatformThreads,
		hosts:         []string{"threads.net", "threads.com"},
		pathHint:      "/post/",
		readySelector: `div[data-pressable-container]`,
		rootSelectors: []string{
			`div[data-pressable-container="true"]`,
			`div[data-interactable="true"]`,
			`main [role="region"]`,
			`main`,
		},
		nextSelectors: []string{
			`a[aria-label="Next"]`,
			`a[rel="next"]`,
		},
		boundaryMarkers: []string{
			"more replies",
			"related threads",
			"suggested for you",
		},
		altExclusions: []string{"profile"},
		urlExclusions: []string{"/t51.2885-19/"}, // threads/IG profile-pic CDN path
	}, fetcher, cfg, log)
}

// NewInstagram scrapes instagram.com post and reel pages.
func NewInstagram(fetcher Fetcher, cfg config.ExtractionConfig, log logger.Logger) PageScraper {
	return newScraper(profile{
		platform:      models.PlatformInstagram,
		hosts:         []string{"instagram.com"},
		pathHint:      "/p/",
		readySelector: `article`,
		rootSelectors: []string{
			`main article`,
			`article[role="presentation"]`,
			`main[role="main"]`,
		},
		nextSelectors: []string{
			`a[aria-label="Next"]`,
			`button[aria-label="Next"]`,
			`a[rel="next"]`,
		},
		boundaryMarkers: []string{
			"more posts from",
			"related posts",
		},
		altExclusions: []string{"'s profile"},
		urlExclusions: []string{"/t51.2885-19/"},
	}, fetcher, cfg, log)
}

// NewFacebook scrapes facebook.com photo and post pages.
func NewFacebook(fetcher Fetcher, cfg config.ExtractionConfig, log logger.Logger) PageScraper {
	return newScraper(profile{
		platform:      models.PlatformFacebook,
		hosts:         []string{"facebook.com", "fb.com"},
		readySelector: `[role="article"]`,
		rootSelectors: []string{
			`[role="article"]`,
			`[data-pagelet^="MediaViewer"]`,
			`[role="main"]`,
		},
		nextSelectors: []string{
			`a[aria-label="Next photo"]`,
			`a[aria-label="Next"]`,
			`a[rel="next"]`,
		},
		boundaryMarkers: []string{
			"more posts",
			"people you may know",
			"suggested for you",
			"sponsored",
		},
		altExclusions: []string{"profile"},
		urlExclusions: []string{"/p32x32/", "/p64x64/", "/cp0/"},
	}, fetcher, cfg, log)
}

// NewTwitter scrapes x.com / twitter.com status pages.
func NewTwitter(fetcher Fetcher, cfg config.ExtractionConfig, log logger.Logger) PageScraper {
	return newScraper(profile{
		platform:      models.PlatformTwitter,
		hosts:         []string{"x.com", "twitter.com"},
		pathHint:      "/status/",
		readySelector: `article`,
		rootSelectors: []string{
			`article[data-testid="tweet"]`,
			`main article`,
			`main`,
		},
		nextSelectors: []string{
			`a[aria-label="Next slide"]`,
			`a[aria-label="Next"]`,
			`a[rel="next"]`,
		},
		boundaryMarkers: []string{
			"discover more",
			"more replies",
			"who to follow",
		},
		altExclusions: []string{"profile"},
		// name=small / format thumbnails and hosted profile media
		urlExclusions: []string{"profile_banners", "name=small", "name=thumb"},
	}, fetcher, cfg, log)
}
