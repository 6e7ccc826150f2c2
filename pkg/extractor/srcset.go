package extractor

import (
	"strconv"
	"strings"
)

// srcsetCandidate is one entry of a srcset attribute.
type srcsetCandidate struct {
	URL string
	// Width in pixels for "w" descriptors. Density descriptors are scaled
	// to a comparable pseudo-width so 2x outranks 1x.
	Width int
	// density marks a pseudo-width derived from an "x" descriptor.
	density bool
}

// parseSrcset splits a srcset attribute into candidates. Malformed entries
// are skipped rather than failing the whole attribute.
func parseSrcset(srcset string) []srcsetCandidate {
	var out []srcsetCandidate
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		c := srcsetCandidate{URL: fields[0]}
		if len(fields) > 1 {
			c.Width, c.density = parseDescriptor(fields[1])
		}
		out = append(out, c)
	}
	return out
}

func parseDescriptor(desc string) (int, bool) {
	desc = strings.ToLower(strings.TrimSpace(desc))
	switch {
	case strings.HasSuffix(desc, "w"):
		if n, err := strconv.Atoi(strings.TrimSuffix(desc, "w")); err == nil {
			return n, false
		}
	case strings.HasSuffix(desc, "x"):
		if f, err := strconv.ParseFloat(strings.TrimSuffix(desc, "x"), 64); err == nil {
			return int(f * 1000), true
		}
	}
	return 0, false
}

// bestSrcsetCandidate returns the highest-resolution candidate URL and its
// declared width (0 when unknown or density-based).
func bestSrcsetCandidate(srcset string) (string, int) {
	candidates := parseSrcset(srcset)
	if len(candidates) == 0 {
		return "", 0
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Width > best.Width {
			best = c
		}
	}
	if best.density {
		return best.URL, 0
	}
	return best.URL, best.Width
}
