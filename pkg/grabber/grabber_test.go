package grabber

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/messaging"
)

func newTestGrabber(t *testing.T) *Grabber {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.Directory = t.TempDir()

	g, err := New(cfg, nil)
	require.NoError(t, err)
	return g
}

func TestGrabUnsupportedHostPublishesEvents(t *testing.T) {
	g := newTestGrabber(t)

	var mu sync.Mutex
	var types []messaging.MessageType
	g.Bus().Subscribe(func(ev messaging.Event) {
		mu.Lock()
		types = append(types, ev.Type)
		mu.Unlock()
	})

	_, err := g.Grab(context.Background(), "https://example.com/page", false)
	require.Error(t, err)
	assert.Equal(t, errs.KindUnsupported, errs.KindOf(err))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, types, 2)
	assert.Equal(t, messaging.EventExtractionStarted, types[0])
	assert.Equal(t, messaging.EventExtractionFinished, types[1])
}

func TestBusHandlersRegistered(t *testing.T) {
	g := newTestGrabber(t)

	for _, msgType := range []messaging.MessageType{
		messaging.TypeExtractImages,
		messaging.TypeDownloadSingle,
		messaging.TypeDownloadBatch,
		messaging.TypeCancelAll,
		messaging.TypeRetryFailed,
		messaging.TypeGetProgress,
		messaging.TypeGetConfig,
		messaging.TypeUpdateConfig,
	} {
		req, err := messaging.NewRequest(msgType, nil)
		require.NoError(t, err)
		resp := g.Bus().Request(context.Background(), req)
		// handlers may reject the empty payload, but none may be missing
		assert.NotEqual(t, string(errs.KindUnavailable), resp.ErrorKind,
			"no handler for %s", msgType)
	}
}

func TestProgressHandler(t *testing.T) {
	g := newTestGrabber(t)

	req, err := messaging.NewRequest(messaging.TypeGetProgress, nil)
	require.NoError(t, err)
	resp := g.Bus().Request(context.Background(), req)
	require.True(t, resp.Success)

	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.EqualValues(t, 0, snap["total"])
}

func TestUpdateConfigValidation(t *testing.T) {
	g := newTestGrabber(t)

	bad := g.Config().Clone()
	bad.Download.MaxConcurrent = 0
	err := g.UpdateConfig(bad)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	good := g.Config().Clone()
	good.Download.MaxConcurrent = 5
	require.NoError(t, g.UpdateConfig(good))
	assert.Equal(t, 5, g.Config().Download.MaxConcurrent)
}

func TestCancelAllPublishesEvent(t *testing.T) {
	g := newTestGrabber(t)

	var got []messaging.MessageType
	g.Bus().Subscribe(func(ev messaging.Event) { got = append(got, ev.Type) })

	n := g.CancelAll()
	assert.Equal(t, 0, n)
	require.Len(t, got, 1)
	assert.Equal(t, messaging.EventQueueCancelled, got[0])
}
