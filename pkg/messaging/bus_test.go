package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "postgrab/pkg/errors"
)

func TestRequestRoundTrip(t *testing.T) {
	bus := NewBus(nil)
	bus.Handle(TypeGetProgress, func(_ context.Context, req Request) Response {
		resp, err := OK(req, map[string]int{"total": 4})
		require.NoError(t, err)
		return resp
	})

	req, err := NewRequest(TypeGetProgress, nil)
	require.NoError(t, err)
	require.NotEmpty(t, req.RequestID)

	resp := bus.Request(context.Background(), req)
	assert.True(t, resp.Success)
	assert.Equal(t, req.RequestID, resp.RequestID)

	var data map[string]int
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 4, data["total"])
}

func TestRequestUnhandledType(t *testing.T) {
	bus := NewBus(nil)

	req, err := NewRequest(MessageType("does.not.exist"), nil)
	require.NoError(t, err)

	resp := bus.Request(context.Background(), req)
	assert.False(t, resp.Success)
	assert.Equal(t, string(errs.KindUnavailable), resp.ErrorKind)
	assert.Equal(t, req.RequestID, resp.RequestID)
}

func TestRequestCancelledContext(t *testing.T) {
	bus := NewBus(nil)
	bus.Handle(TypeCancelAll, func(_ context.Context, req Request) Response {
		t.Fatal("handler must not run for a cancelled context")
		return Response{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := NewRequest(TypeCancelAll, nil)
	require.NoError(t, err)

	resp := bus.Request(ctx, req)
	assert.False(t, resp.Success)
}

func TestPublishDeliveryOrder(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.Subscribe(func(Event) { order = append(order, "first") })
	bus.Subscribe(func(Event) { order = append(order, "second") })

	bus.PublishType(EventDownloadCompleted, map[string]string{"item": "x"})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestFailCarriesErrorKind(t *testing.T) {
	req, err := NewRequest(TypeExtractImages, map[string]string{"url": "x"})
	require.NoError(t, err)

	resp := Fail(req, errs.New(errs.KindValidation, "bad input"))
	assert.False(t, resp.Success)
	assert.Equal(t, string(errs.KindValidation), resp.ErrorKind)
	assert.Contains(t, resp.Error, "bad input")
}

func TestNewEventMarshalsPayload(t *testing.T) {
	ev, err := NewEvent(EventDownloadProgress, map[string]int{"pending": 2})
	require.NoError(t, err)
	assert.Equal(t, EventDownloadProgress, ev.Type)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, 2, payload["pending"])
}
