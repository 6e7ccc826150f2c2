package extractor

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"postgrab/pkg/models"
)

// commonAltExclusions reject accessibility text that marks avatars, UI
// chrome, and reaction imagery across all four platforms.
var commonAltExclusions = []string{
	"profile photo",
	"profile picture",
	"avatar",
	"icon",
	"emoji",
	"logo",
	"badge",
	"sticker",
	"verified",
}

// commonURLExclusions reject static-asset and thumbnail URL fragments.
var commonURLExclusions = []string{
	"profile_images",
	"/emoji/",
	"avatar",
	"favicon",
	"sprite",
	"rsrc.php",
	"static.xx",
	"s150x150",
	"s320x320",
	"/p50x50/",
	"blank.gif",
}

// imageFilter applies the size and exclusion-list heuristics.
type imageFilter struct {
	minSize       int
	altExclusions []string
	urlExclusions []string
}

func (f imageFilter) keep(d models.ImageDescriptor) bool {
	if d.URL == "" || strings.HasPrefix(d.URL, "data:") {
		return false
	}
	if strings.HasSuffix(strings.ToLower(pathOf(d.URL)), ".svg") {
		return false
	}

	// Declared dimensions when present; rendered size is unknowable from
	// static markup, so absent dimensions pass through.
	if d.Width > 0 && d.Width < f.minSize {
		return false
	}
	if d.Height > 0 && d.Height < f.minSize {
		return false
	}

	alt := strings.ToLower(d.AltText)
	for _, excl := range f.altExclusions {
		if excl != "" && strings.Contains(alt, excl) {
			return false
		}
	}
	lowURL := strings.ToLower(d.URL)
	for _, excl := range f.urlExclusions {
		if excl != "" && strings.Contains(lowURL, excl) {
			return false
		}
	}
	return true
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

// collectImages scans img and video elements under root in document order,
// stopping at the boundary node, and appends descriptors for candidates that
// pass the filter and have not been seen before.
func collectImages(
	root *goquery.Selection,
	boundary *goquery.Selection,
	base *url.URL,
	platform models.Platform,
	f imageFilter,
	seen map[string]bool,
) []models.ImageDescriptor {
	var out []models.ImageDescriptor
	out = collectInto(root, boundary, base, platform, f, seen, out)
	return out
}

func collectInto(
	root *goquery.Selection,
	boundary *goquery.Selection,
	base *url.URL,
	platform models.Platform,
	f imageFilter,
	seen map[string]bool,
	out []models.ImageDescriptor,
) []models.ImageDescriptor {
	crossed := false

	root.Find("img, video").Each(func(_ int, el *goquery.Selection) {
		if crossed {
			return
		}
		if boundary != nil && boundary.Length() > 0 && nodeAfter(el, boundary) {
			// Everything from the boundary onward is comments or
			// recommendations, and elements scan in document order.
			crossed = true
			return
		}

		d, ok := describeElement(el, base, platform)
		if !ok || !f.keep(d) {
			return
		}
		if seen[d.URL] {
			return
		}
		seen[d.URL] = true
		out = append(out, d)
	})
	return out
}

// describeElement builds an ImageDescriptor from an img or video element.
func describeElement(el *goquery.Selection, base *url.URL, platform models.Platform) (models.ImageDescriptor, bool) {
	var d models.ImageDescriptor
	d.Platform = platform
	d.ExtractedAt = time.Now().UTC()
	d.Metadata = map[string]string{"method": "selector"}

	if goquery.NodeName(el) == "video" {
		src, _ := el.Attr("src")
		if src == "" {
			src, _ = el.Find("source").First().Attr("src")
		}
		if src == "" {
			return d, false
		}
		d.MediaType = models.MediaTypeVideo
		d.URL = resolveURL(base, src)
		if poster, ok := el.Attr("poster"); ok {
			d.ThumbnailURL = resolveURL(base, poster)
		}
		return d, true
	}

	d.MediaType = models.MediaTypeImage
	src, _ := el.Attr("src")
	d.AltText, _ = el.Attr("alt")
	d.Width = attrInt(el, "width")
	d.Height = attrInt(el, "height")

	// Prefer the highest-resolution srcset candidate over src.
	if srcset, ok := el.Attr("srcset"); ok && srcset != "" {
		if best, w := bestSrcsetCandidate(srcset); best != "" {
			d.URL = resolveURL(base, best)
			if src != "" {
				d.ThumbnailURL = resolveURL(base, src)
			}
			if w > d.Width {
				d.Width = w
			}
			d.Metadata["method"] = "srcset"
			return d, d.URL != ""
		}
	}

	if src == "" {
		return d, false
	}
	d.URL = resolveURL(base, src)
	return d, d.URL != ""
}

func attrInt(el *goquery.Selection, name string) int {
	v, ok := el.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0
	}
	return n
}

func resolveURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
