// Package messaging defines the typed message envelopes and the in-process
// bus that connects the grabber, the queue, and the bridge.
package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	errs "postgrab/pkg/errors"
)

// MessageType identifies an operation or event on the bus.
type MessageType string

// Request types.
const (
	TypeExtractImages  MessageType = "extraction.extract"
	TypeDownloadSingle MessageType = "download.single"
	TypeDownloadBatch  MessageType = "download.batch"
	TypeCancelAll      MessageType = "download.cancel_all"
	TypeRetryFailed    MessageType = "download.retry_failed"
	TypeGetProgress    MessageType = "status.progress"
	TypeGetConfig      MessageType = "config.get"
	TypeUpdateConfig   MessageType = "config.update"
)

// Event types, broadcast without a paired response.
const (
	EventExtractionStarted  MessageType = "extraction.started"
	EventExtractionFinished MessageType = "extraction.finished"
	EventDownloadQueued     MessageType = "download.queued"
	EventDownloadProgress   MessageType = "download.progress"
	EventDownloadCompleted  MessageType = "download.completed"
	EventDownloadFailed     MessageType = "download.failed"
	EventQueueCancelled     MessageType = "download.cancelled"
)

// Request is the envelope for an operation sent over the bus or the bridge.
// Payload stays raw JSON so each handler decodes only its own shape.
type Request struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
}

// Response pairs with a Request via RequestID. ErrorKind carries the error
// classification so transports can map failures without parsing messages.
type Response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event is a one-way broadcast envelope.
type Event struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRequest builds a request envelope, marshalling the payload.
func NewRequest(t MessageType, payload interface{}) (Request, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Type:      t,
		Payload:   raw,
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewEvent builds a broadcast envelope, marshalling the payload.
func NewEvent(t MessageType, payload interface{}) (Event, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Payload: raw, Timestamp: time.Now().UTC()}, nil
}

// OK builds a success response for a request.
func OK(req Request, data interface{}) (Response, error) {
	raw, err := marshalPayload(data)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Success:   true,
		Data:      raw,
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Fail builds an error response for a request.
func Fail(req Request, err error) Response {
	return Response{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: string(errs.KindOf(err)),
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
	}
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}
