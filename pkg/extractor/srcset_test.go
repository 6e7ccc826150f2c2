package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSrcset(t *testing.T) {
	candidates := parseSrcset("https://a.example/s.jpg 320w, https://a.example/m.jpg 640w,https://a.example/l.jpg 1080w")
	assert.Len(t, candidates, 3)
	assert.Equal(t, "https://a.example/s.jpg", candidates[0].URL)
	assert.Equal(t, 320, candidates[0].Width)
	assert.Equal(t, 1080, candidates[2].Width)
}

func TestParseSrcsetMalformedEntriesSkipped(t *testing.T) {
	candidates := parseSrcset("https://a.example/ok.jpg 640w, , https://a.example/nodesc.jpg")
	assert.Len(t, candidates, 2)
	assert.Equal(t, 0, candidates[1].Width)
}

func TestBestSrcsetCandidateWidth(t *testing.T) {
	best, width := bestSrcsetCandidate("https://a.example/s.jpg 320w, https://a.example/l.jpg 1080w, https://a.example/m.jpg 640w")
	assert.Equal(t, "https://a.example/l.jpg", best)
	assert.Equal(t, 1080, width)
}

func TestBestSrcsetCandidateDensity(t *testing.T) {
	best, width := bestSrcsetCandidate("https://a.example/1x.jpg 1x, https://a.example/2x.jpg 2x")
	assert.Equal(t, "https://a.example/2x.jpg", best)
	// density descriptors carry no pixel width
	assert.Equal(t, 0, width)
}

func TestBestSrcsetCandidateEmpty(t *testing.T) {
	best, width := bestSrcsetCandidate("")
	assert.Empty(t, best)
	assert.Zero(t, width)
}
