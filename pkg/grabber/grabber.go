// Package grabber wires extraction, the download queue, storage, and
// messaging into the end-to-end grab operation.
package grabber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"postgrab/pkg/auth"
	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/extractor"
	"postgrab/pkg/fetch"
	"postgrab/pkg/logger"
	"postgrab/pkg/messaging"
	"postgrab/pkg/metadata"
	"postgrab/pkg/models"
	"postgrab/pkg/queue"
	"postgrab/pkg/storage"
	"postgrab/pkg/ui"
)

// Report summarizes one grab run.
type Report struct {
	PageURL      string                   `json:"page_url"`
	Images       []models.ImageDescriptor `json:"images"`
	Batch        models.BatchResult       `json:"batch"`
	ManifestPath string                   `json:"manifest_path,omitempty"`
	DryRun       bool                     `json:"dry_run"`
	Elapsed      time.Duration            `json:"elapsed"`
}

// Grabber owns the component graph for grab runs and bus-driven operations.
type Grabber struct {
	mu  sync.RWMutex
	cfg *config.Config

	fetcher  *fetch.Client
	registry *extractor.Registry
	queue    *queue.Manager
	facility *storage.Facility
	bus      *messaging.Bus
	manifest *metadata.Writer
	notifier *ui.Notifier
	sessions *auth.Manager
	logger   logger.Logger
}

// New builds a fully wired grabber from configuration.
func New(cfg *config.Config, log logger.Logger) (*Grabber, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	fetcher := fetch.NewClient(&cfg.Fetch, nil, log)

	sessions := auth.NewManager(log)
	for _, platform := range []models.Platform{
		models.PlatformThreads,
		models.PlatformInstagram,
		models.PlatformFacebook,
		models.PlatformTwitter,
	} {
		session, err := sessions.Get(platform)
		if err != nil {
			continue
		}
		fetcher.SetCookie(platform, session.Cookie)
		if session.UserAgent != "" {
			fetcher.SetHeader("User-Agent", session.UserAgent)
		}
		log.DebugWithFields("session attached", map[string]interface{}{
			"platform": string(platform),
		})
	}

	facility, err := storage.NewFacility(fetcher, cfg.Output, cfg.Download.MinFileSize, log)
	if err != nil {
		return nil, err
	}

	g := &Grabber{
		cfg:      cfg,
		fetcher:  fetcher,
		registry: extractor.NewRegistry(fetcher, cfg.Extraction, log),
		queue:    queue.NewManager(facility, cfg.Download, cfg.Retry, log),
		facility: facility,
		bus:      messaging.NewBus(log),
		manifest: metadata.NewWriter(cfg.Output.Directory, log),
		notifier: ui.NewNotifier(true),
		sessions: sessions,
		logger:   log,
	}

	g.queue.Subscribe(func(snap models.ProgressSnapshot) {
		g.bus.PublishType(messaging.EventDownloadProgress, snap)
	})
	g.registerHandlers()
	return g, nil
}

// Bus exposes the message bus for the bridge and for tests.
func (g *Grabber) Bus() *messaging.Bus { return g.bus }

// Queue exposes the download queue manager.
func (g *Grabber) Queue() *queue.Manager { return g.queue }

// SetNotifier replaces the notifier; the CLI passes a console-enabled one.
func (g *Grabber) SetNotifier(n *ui.Notifier) {
	if n != nil {
		g.notifier = n
	}
}

// Config returns the current configuration.
func (g *Grabber) Config() *config.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Grab extracts every image from the post page and downloads them through
// the queue. With dryRun set it stops after extraction.
func (g *Grabber) Grab(ctx context.Context, pageURL string, dryRun bool) (*Report, error) {
	start := time.Now()
	g.bus.PublishType(messaging.EventExtractionStarted, map[string]string{"url": pageURL})

	images, err := g.registry.ExtractImages(ctx, pageURL)
	if err != nil {
		g.bus.PublishType(messaging.EventExtractionFinished, map[string]interface{}{
			"url":   pageURL,
			"error": err.Error(),
		})
		return nil, err
	}
	g.bus.PublishType(messaging.EventExtractionFinished, map[string]interface{}{
		"url":    pageURL,
		"images": len(images),
	})

	report := &Report{PageURL: pageURL, Images: images, DryRun: dryRun}
	if dryRun {
		report.Elapsed = time.Since(start)
		return report, nil
	}

	g.bus.PublishType(messaging.EventDownloadQueued, map[string]interface{}{
		"url":   pageURL,
		"count": len(images),
	})
	batch, err := g.queue.EnqueueBatch(ctx, images)
	if err != nil {
		return nil, err
	}
	report.Batch = batch
	g.publishResults(batch.Results)

	if g.Config().Output.WriteManifest {
		if path, err := g.manifest.Write(pageURL, images, batch.Results); err != nil {
			g.logger.WithError(err).Warn("failed to write manifest")
		} else {
			report.ManifestPath = path
		}
	}

	report.Elapsed = time.Since(start)
	g.notifySummary(report)
	return report, nil
}

func (g *Grabber) publishResults(results []models.DownloadResult) {
	for _, r := range results {
		if r.Success {
			g.bus.PublishType(messaging.EventDownloadCompleted, r)
		} else {
			g.bus.PublishType(messaging.EventDownloadFailed, r)
		}
	}
}

func (g *Grabber) notifySummary(report *Report) {
	title := "Download complete"
	message := fmt.Sprintf("%d of %d images saved to %s",
		report.Batch.Succeeded, len(report.Images), g.Config().Output.Directory)
	if report.Batch.Failed > 0 {
		title = "Download finished with errors"
		g.notifier.NotifyError(title, message)
		return
	}
	g.notifier.NotifySuccess(title, message)
}

// CancelAll cancels all pending downloads and broadcasts the event.
func (g *Grabber) CancelAll() int {
	n := g.queue.CancelAll()
	g.bus.PublishType(messaging.EventQueueCancelled, map[string]int{"cancelled": n})
	return n
}

// RetryFailed re-enqueues every failed item.
func (g *Grabber) RetryFailed(ctx context.Context) ([]models.DownloadResult, error) {
	results, err := g.queue.RetryFailed(ctx)
	if err != nil {
		return nil, err
	}
	g.publishResults(results)
	return results, nil
}

// UpdateConfig applies a validated replacement configuration. Queue and
// fetch tunables take effect on the next run; output settings apply
// immediately to manifests.
func (g *Grabber) UpdateConfig(next *config.Config) error {
	if err := next.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, err, "rejected configuration update")
	}
	g.mu.Lock()
	g.cfg = next
	g.manifest = metadata.NewWriter(next.Output.Directory, g.logger)
	g.mu.Unlock()
	g.logger.Info("configuration updated")
	return nil
}
