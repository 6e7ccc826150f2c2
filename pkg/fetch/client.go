package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	gocache "github.com/patrickmn/go-cache"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
	"postgrab/pkg/models"
	"postgrab/pkg/ratelimit"
)

// Client fetches post pages and media with browser-like headers, per-platform
// session cookies, and a short-lived document cache so carousel rescans do
// not hammer the origin.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	cache      *gocache.Cache
	logger     logger.Logger

	mu      sync.RWMutex
	headers map[string]string
	cookies map[models.Platform]string
}

// NewClient creates a page-fetching client.
func NewClient(cfg *config.FetchConfig, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.NewTokenBucket(cfg.RequestsPerMinute, time.Minute)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		cache:      gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:     log,
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		cookies: make(map[models.Platform]string),
	}
}

// SetHeader overrides a default request header.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// SetCookie attaches a session cookie used for requests to one platform.
func (c *Client) SetCookie(platform models.Platform, cookie string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies[platform] = cookie
}

// Get fetches raw bytes from a URL, classifying failures for retry decisions.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errs.New(errs.KindValidation, "invalid URL %q", rawURL)
	}

	c.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "failed to build request")
	}

	c.mu.RLock()
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if cookie, ok := c.cookies[PlatformForHost(u.Hostname())]; ok && cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	c.mu.RUnlock()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.KindTimeout, err, "request cancelled or timed out")
		}
		return nil, errs.Wrap(errs.KindNetwork, err, "request failed")
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("fetched URL", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode != http.StatusOK {
		kind := errs.KindForStatusCode(resp.StatusCode)
		return nil, errs.New(kind, "unexpected status %d fetching %s", resp.StatusCode, rawURL).
			WithCode(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "failed to read response body")
	}
	return data, nil
}

// Document returns a parsed page, served from cache within the TTL.
func (c *Client) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if cached, ok := c.cache.Get(rawURL); ok {
		return cached.(*goquery.Document), nil
	}
	return c.FreshDocument(ctx, rawURL)
}

// FreshDocument bypasses the cache; readiness polls and carousel rescans
// need to observe newly loaded content.
func (c *Client) FreshDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	data, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.KindExtraction, err, "failed to parse HTML from %s", rawURL)
	}
	c.cache.SetDefault(rawURL, doc)
	return doc, nil
}

// PlatformForHost maps a hostname onto a known platform tag.
func PlatformForHost(host string) models.Platform {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "threads."):
		return models.PlatformThreads
	case strings.Contains(host, "instagram."):
		return models.PlatformInstagram
	case strings.Contains(host, "facebook.") || host == "fb.com" || strings.HasSuffix(host, ".fb.com"):
		return models.PlatformFacebook
	case host == "x.com" || strings.HasSuffix(host, ".x.com") || strings.Contains(host, "twitter."):
		return models.PlatformTwitter
	default:
		return models.PlatformUnknown
	}
}
