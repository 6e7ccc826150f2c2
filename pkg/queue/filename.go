package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"postgrab/pkg/models"
)

// knownExtensions are the media extensions the filename generator trusts
// when found in a URL. Everything else falls back to jpg.
var knownExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"webp": true, "avif": true, "bmp": true, "heic": true,
	"mp4": true, "webm": true, "mov": true,
}

// extensionScanOrder fixes the embedded-extension scan order; longer
// variants first so "jpeg" wins over "jpg" inside the same URL.
var extensionScanOrder = []string{
	"jpeg", "webp", "avif", "heic", "webm",
	"jpg", "png", "gif", "bmp", "mp4", "mov",
}

// GenerateFilename builds the suggested download name:
//
//	<platform>_<kind>_<timestamp>_<suffix>.<ext>
//
// where the timestamp is the 14-digit second-resolution form of now and the
// extension is resolved from the media URL. The suffix keeps names from
// images extracted in the same second distinct.
func GenerateFilename(img models.ImageDescriptor, now time.Time, suffix string) string {
	platform := img.Platform
	if platform == "" {
		platform = models.PlatformUnknown
	}
	kind := "image"
	if img.MediaType == models.MediaTypeVideo {
		kind = "video"
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s",
		platform, kind, now.Format("20060102150405"), suffix, extensionFor(img))
}

// extensionFor resolves the file extension in priority order: an explicit
// format query parameter, then the URL path extension, then a scan of the
// raw URL for an embedded extension. CDN URLs often carry the real format
// only in the query string.
func extensionFor(img models.ImageDescriptor) string {
	fallback := "jpg"
	if img.MediaType == models.MediaTypeVideo {
		fallback = "mp4"
	}

	u, err := url.Parse(img.URL)
	if err != nil {
		return fallback
	}

	if format := strings.ToLower(u.Query().Get("format")); knownExtensions[format] {
		return format
	}

	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), ".")); knownExtensions[ext] {
		return ext
	}

	lower := strings.ToLower(img.URL)
	for _, ext := range extensionScanOrder {
		if strings.Contains(lower, "."+ext) {
			return ext
		}
	}
	return fallback
}

// shortHash derives a stable 8-character suffix from the media URL.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
