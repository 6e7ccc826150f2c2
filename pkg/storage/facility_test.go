package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
)

type stubGetter struct {
	data map[string][]byte
	err  error
}

func (s *stubGetter) Get(_ context.Context, url string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data[url], nil
}

func newTestFacility(t *testing.T, getter Getter, policy string, minSize int64) *Facility {
	t.Helper()
	f, err := NewFacility(getter, config.OutputConfig{
		Directory:      t.TempDir(),
		ConflictPolicy: policy,
	}, minSize, nil)
	require.NoError(t, err)
	return f
}

func TestDownloadWritesFile(t *testing.T) {
	getter := &stubGetter{data: map[string][]byte{
		"https://cdn.example.com/a.jpg": []byte("jpegdata-jpegdata"),
	}}
	f := newTestFacility(t, getter, config.ConflictUniquify, 0)

	name, err := f.Download(context.Background(), "https://cdn.example.com/a.jpg", "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)

	data, err := os.ReadFile(filepath.Join(f.OutputDir(), "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegdata-jpegdata"), data)
}

func TestDownloadUniquifiesConflicts(t *testing.T) {
	getter := &stubGetter{data: map[string][]byte{
		"https://cdn.example.com/a.jpg": []byte("first payload"),
	}}
	f := newTestFacility(t, getter, config.ConflictUniquify, 0)

	first, err := f.Download(context.Background(), "https://cdn.example.com/a.jpg", "photo.jpg")
	require.NoError(t, err)
	second, err := f.Download(context.Background(), "https://cdn.example.com/a.jpg", "photo.jpg")
	require.NoError(t, err)
	third, err := f.Download(context.Background(), "https://cdn.example.com/a.jpg", "photo.jpg")
	require.NoError(t, err)

	assert.Equal(t, "photo.jpg", first)
	assert.Equal(t, "photo (1).jpg", second)
	assert.Equal(t, "photo (2).jpg", third)
}

func TestDownloadOverwritePolicy(t *testing.T) {
	getter := &stubGetter{data: map[string][]byte{
		"https://cdn.example.com/v1.jpg": []byte("version one"),
		"https://cdn.example.com/v2.jpg": []byte("version two!"),
	}}
	f := newTestFacility(t, getter, config.ConflictOverwrite, 0)

	_, err := f.Download(context.Background(), "https://cdn.example.com/v1.jpg", "photo.jpg")
	require.NoError(t, err)
	name, err := f.Download(context.Background(), "https://cdn.example.com/v2.jpg", "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)

	data, err := os.ReadFile(filepath.Join(f.OutputDir(), "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("version two!"), data)
}

func TestDownloadRejectsUndersizedPayload(t *testing.T) {
	getter := &stubGetter{data: map[string][]byte{
		"https://cdn.example.com/pixel.gif": []byte("tiny"),
	}}
	f := newTestFacility(t, getter, config.ConflictUniquify, 1024)

	_, err := f.Download(context.Background(), "https://cdn.example.com/pixel.gif", "pixel.gif")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, statErr := os.Stat(filepath.Join(f.OutputDir(), "pixel.gif"))
	assert.True(t, os.IsNotExist(statErr), "rejected payloads must not be written")
}

func TestDownloadPropagatesFetchError(t *testing.T) {
	getter := &stubGetter{err: errs.New(errs.KindNetwork, "connection reset")}
	f := newTestFacility(t, getter, config.ConflictUniquify, 0)

	_, err := f.Download(context.Background(), "https://cdn.example.com/a.jpg", "a.jpg")
	require.Error(t, err)
	assert.Equal(t, errs.KindNetwork, errs.KindOf(err),
		"classification must survive for the retry policy")
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	getter := &stubGetter{data: map[string][]byte{
		"https://cdn.example.com/a.jpg": []byte("payload data here"),
	}}
	f := newTestFacility(t, getter, config.ConflictUniquify, 0)

	_, err := f.Download(context.Background(), "https://cdn.example.com/a.jpg", "a.jpg")
	require.NoError(t, err)

	entries, err := os.ReadDir(f.OutputDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".postgrab-", "temp file leaked: %s", e.Name())
	}
}
