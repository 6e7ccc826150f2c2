package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/models"
	"postgrab/pkg/ratelimit"
)

func testFetchConfig() *config.FetchConfig {
	return &config.FetchConfig{
		Timeout:   5 * time.Second,
		CacheTTL:  time.Minute,
		UserAgent: "test-agent",
	}
}

func TestGetSendsHeaders(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	c := NewClient(testFetchConfig(), ratelimit.Unlimited{}, nil)
	c.SetCookie(models.PlatformUnknown, "sid=abc")

	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", gotUA)
	// httptest hosts map to the unknown platform
	assert.Equal(t, "sid=abc", gotCookie)
}

func TestGetClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   errs.Kind
	}{
		{http.StatusNotFound, errs.KindNotFound},
		{http.StatusTooManyRequests, errs.KindRateLimit},
		{http.StatusInternalServerError, errs.KindServer},
		{http.StatusForbidden, errs.KindNetwork},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := NewClient(testFetchConfig(), ratelimit.Unlimited{}, nil)
		_, err := c.Get(context.Background(), srv.URL)
		srv.Close()

		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.want, errs.KindOf(err), "status %d", tt.status)
	}
}

func TestGetInvalidURL(t *testing.T) {
	c := NewClient(testFetchConfig(), ratelimit.Unlimited{}, nil)
	_, err := c.Get(context.Background(), "not-a-url")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestDocumentServedFromCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`<html><body><p id="x">hello</p></body></html>`))
	}))
	defer srv.Close()

	c := NewClient(testFetchConfig(), ratelimit.Unlimited{}, nil)

	doc1, err := c.Document(context.Background(), srv.URL)
	require.NoError(t, err)
	doc2, err := c.Document(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second read must come from cache")
	assert.Equal(t, doc1.Find("#x").Text(), doc2.Find("#x").Text())
}

func TestFreshDocumentBypassesCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`<html><body></body></html>`))
	}))
	defer srv.Close()

	c := NewClient(testFetchConfig(), ratelimit.Unlimited{}, nil)

	_, err := c.Document(context.Background(), srv.URL)
	require.NoError(t, err)
	_, err = c.FreshDocument(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPlatformForHost(t *testing.T) {
	tests := []struct {
		host string
		want models.Platform
	}{
		{"www.threads.net", models.PlatformThreads},
		{"threads.com", models.PlatformThreads},
		{"www.instagram.com", models.PlatformInstagram},
		{"facebook.com", models.PlatformFacebook},
		{"fb.com", models.PlatformFacebook},
		{"x.com", models.PlatformTwitter},
		{"mobile.twitter.com", models.PlatformTwitter},
		{"example.com", models.PlatformUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlatformForHost(tt.host), tt.host)
	}
}
