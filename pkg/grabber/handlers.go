package grabber

import (
	"context"
	"encoding/json"

	errs "postgrab/pkg/errors"
	"postgrab/pkg/messaging"
	"postgrab/pkg/models"
)

// Payload shapes for bus requests.
type (
	ExtractPayload struct {
		URL string `json:"url"`
	}
	DownloadPayload struct {
		Image models.ImageDescriptor `json:"image"`
	}
	BatchPayload struct {
		PageURL string                   `json:"page_url,omitempty"`
		Images  []models.ImageDescriptor `json:"images"`
	}
)

// registerHandlers binds every request type to its queue or registry
// operation. The bridge drives these over HTTP and WebSocket.
func (g *Grabber) registerHandlers() {
	g.bus.Handle(messaging.TypeExtractImages, func(ctx context.Context, req messaging.Request) messaging.Response {
		var p ExtractPayload
		if err := decode(req, &p); err != nil {
			return messaging.Fail(req, err)
		}
		images, err := g.registry.ExtractImages(ctx, p.URL)
		if err != nil {
			return messaging.Fail(req, err)
		}
		return ok(req, images)
	})

	g.bus.Handle(messaging.TypeDownloadSingle, func(ctx context.Context, req messaging.Request) messaging.Response {
		var p DownloadPayload
		if err := decode(req, &p); err != nil {
			return messaging.Fail(req, err)
		}
		result, err := g.queue.EnqueueSingle(ctx, p.Image)
		if err != nil {
			return messaging.Fail(req, err)
		}
		return ok(req, result)
	})

	g.bus.Handle(messaging.TypeDownloadBatch, func(ctx context.Context, req messaging.Request) messaging.Response {
		var p BatchPayload
		if err := decode(req, &p); err != nil {
			return messaging.Fail(req, err)
		}
		batch, err := g.queue.EnqueueBatch(ctx, p.Images)
		if err != nil {
			return messaging.Fail(req, err)
		}
		g.publishResults(batch.Results)
		if p.PageURL != "" && g.Config().Output.WriteManifest {
			if _, err := g.manifest.Write(p.PageURL, p.Images, batch.Results); err != nil {
				g.logger.WithError(err).Warn("failed to write manifest")
			}
		}
		return ok(req, batch)
	})

	g.bus.Handle(messaging.TypeCancelAll, func(_ context.Context, req messaging.Request) messaging.Response {
		return ok(req, map[string]int{"cancelled": g.CancelAll()})
	})

	g.bus.Handle(messaging.TypeRetryFailed, func(ctx context.Context, req messaging.Request) messaging.Response {
		results, err := g.RetryFailed(ctx)
		if err != nil {
			return messaging.Fail(req, err)
		}
		return ok(req, results)
	})

	g.bus.Handle(messaging.TypeGetProgress, func(_ context.Context, req messaging.Request) messaging.Response {
		return ok(req, g.queue.Progress())
	})

	g.bus.Handle(messaging.TypeGetConfig, func(_ context.Context, req messaging.Request) messaging.Response {
		return ok(req, g.Config())
	})

	g.bus.Handle(messaging.TypeUpdateConfig, func(_ context.Context, req messaging.Request) messaging.Response {
		next := g.Config().Clone()
		if err := decode(req, next); err != nil {
			return messaging.Fail(req, err)
		}
		if err := g.UpdateConfig(next); err != nil {
			return messaging.Fail(req, err)
		}
		return ok(req, next)
	})
}

func decode(req messaging.Request, into interface{}) error {
	if len(req.Payload) == 0 {
		return errs.New(errs.KindValidation, "request %q requires a payload", req.Type)
	}
	if err := json.Unmarshal(req.Payload, into); err != nil {
		return errs.Wrap(errs.KindValidation, err, "malformed payload for %q", req.Type)
	}
	return nil
}

func ok(req messaging.Request, data interface{}) messaging.Response {
	resp, err := messaging.OK(req, data)
	if err != nil {
		return messaging.Fail(req, errs.Wrap(errs.KindUnknown, err, "failed to encode response"))
	}
	return resp
}
