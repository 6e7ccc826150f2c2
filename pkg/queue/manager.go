// Package queue implements the download queue manager: bounded-concurrency
// dispatch, per-item retry with linear backoff, and progress aggregation.
package queue

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
	"postgrab/pkg/models"
	"postgrab/pkg/retry"
)

// Facility is the underlying download sink. The manager treats it as a
// black box that either completes (returning the final filename after
// conflict resolution), or fails with a classified error.
type Facility interface {
	Download(ctx context.Context, url, suggestedName string) (string, error)
}

// Observer receives a progress snapshot synchronously after each queue
// mutation. Observers must not call back into the Manager.
type Observer func(models.ProgressSnapshot)

// Manager tracks queue items across the pending/completed/failed maps.
// An item lives in exactly one map at any time; downloading items stay in
// pending until they reach a terminal status.
type Manager struct {
	facility Facility
	logger   logger.Logger

	maxConcurrent int
	launchDelay   time.Duration
	timeout       time.Duration
	maxRetries    int
	retryDelay    time.Duration

	// clock feeds filename timestamps; swapped out in tests.
	clock func() time.Time

	sem        *semaphore.Weighted
	launchMu   sync.Mutex
	lastLaunch time.Time

	mu        sync.Mutex
	pending   map[string]*models.QueueItem
	completed map[string]*models.QueueItem
	failed    map[string]*models.QueueItem
	startedAt time.Time

	obsMu     sync.RWMutex
	observers []Observer
}

// NewManager creates a download queue manager.
func NewManager(facility Facility, dcfg config.DownloadConfig, rcfg config.RetryConfig, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	maxConcurrent := dcfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Manager{
		facility:      facility,
		logger:        log,
		maxConcurrent: maxConcurrent,
		launchDelay:   dcfg.LaunchDelay,
		timeout:       dcfg.Timeout,
		maxRetries:    rcfg.MaxAttempts,
		retryDelay:    rcfg.Delay,
		clock:         time.Now,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		pending:       make(map[string]*models.QueueItem),
		completed:     make(map[string]*models.QueueItem),
		failed:        make(map[string]*models.QueueItem),
	}
}

// SetClock overrides the timestamp source for generated filenames.
func (m *Manager) SetClock(clock func() time.Time) {
	if clock != nil {
		m.clock = clock
	}
}

// Subscribe registers an observer for post-mutation snapshots.
func (m *Manager) Subscribe(o Observer) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.observers = append(m.observers, o)
}

// EnqueueSingle tracks and downloads one image, blocking until the item is
// terminal. Malformed input fails immediately with a validation error and
// never enters the queue.
func (m *Manager) EnqueueSingle(ctx context.Context, img models.ImageDescriptor) (models.DownloadResult, error) {
	if err := validateImage(img); err != nil {
		return models.DownloadResult{}, err
	}
	item := m.addItem(img)
	return m.runItem(ctx, item), nil
}

// EnqueueBatch tracks and downloads an ordered list of images, returning
// exactly one result per input. Items are launched in array order with the
// inter-launch delay; completion order is unordered.
func (m *Manager) EnqueueBatch(ctx context.Context, images []models.ImageDescriptor) (models.BatchResult, error) {
	if len(images) == 0 {
		return models.BatchResult{}, errs.New(errs.KindValidation, "batch must contain at least one image")
	}

	items := make([]*models.QueueItem, len(images))
	for i, img := range images {
		if err := validateImage(img); err != nil {
			// Per-item validation failures surface as failed results so
			// the batch still yields one result per input.
			items[i] = m.addInvalid(img, err)
			continue
		}
		items[i] = m.addItem(img)
	}
	return m.collect(m.runAll(ctx, items)), nil
}

// CancelAll synchronously drains the pending map: every item is marked
// cancelled and moved to the failed map. An already-in-flight attempt
// finishes in the facility; its outcome is discarded and no further
// attempts are issued for the item.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	n := 0
	now := time.Now()
	for id, item := range m.pending {
		item.Status = models.StatusCancelled
		item.Error = "cancelled by user"
		item.EndedAt = now
		delete(m.pending, id)
		m.failed[id] = item
		n++
	}
	m.mu.Unlock()

	if n > 0 {
		m.logger.InfoWithFields("cancelled pending downloads", map[string]interface{}{"count": n})
		m.notify()
	}
	return n
}

// RetryFailed re-enqueues every item currently in the failed map with a
// fresh retry counter and returns their new results. An empty failed set
// returns an empty slice and no error.
func (m *Manager) RetryFailed(ctx context.Context) ([]models.DownloadResult, error) {
	m.mu.Lock()
	items := make([]*models.QueueItem, 0, len(m.failed))
	for id, item := range m.failed {
		delete(m.failed, id)
		item.RetryCount = 0
		item.Status = models.StatusPending
		item.Error = ""
		item.Filename = ""
		item.StartedAt = time.Time{}
		item.EndedAt = time.Time{}
		m.pending[id] = item
		items = append(items, item)
	}
	m.mu.Unlock()

	if len(items) == 0 {
		return []models.DownloadResult{}, nil
	}
	m.notify()
	return m.runAll(ctx, items), nil
}

// Progress returns the current snapshot. Two calls with no mutation in
// between differ only in elapsed-time fields.
func (m *Manager) Progress() models.ProgressSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// addItem constructs a QueueItem and stores it in the pending map.
func (m *Manager) addItem(img models.ImageDescriptor) *models.QueueItem {
	item := &models.QueueItem{
		ID:         uuid.NewString(),
		Image:      img,
		Status:     models.StatusPending,
		EnqueuedAt: time.Now(),
	}
	m.mu.Lock()
	if m.startedAt.IsZero() {
		m.startedAt = item.EnqueuedAt
	}
	m.pending[item.ID] = item
	m.mu.Unlock()
	m.notify()
	return item
}

// addInvalid records a malformed batch entry directly in the failed map.
func (m *Manager) addInvalid(img models.ImageDescriptor, err error) *models.QueueItem {
	now := time.Now()
	item := &models.QueueItem{
		ID:         uuid.NewString(),
		Image:      img,
		Status:     models.StatusFailed,
		EnqueuedAt: now,
		EndedAt:    now,
		Error:      err.Error(),
	}
	m.mu.Lock()
	if m.startedAt.IsZero() {
		m.startedAt = now
	}
	m.failed[item.ID] = item
	m.mu.Unlock()
	m.notify()
	return item
}

// runAll launches items in slice order, each behind the concurrency window
// and the inter-launch delay, and returns results in input order.
func (m *Manager) runAll(ctx context.Context, items []*models.QueueItem) []models.DownloadResult {
	results := make([]models.DownloadResult, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		if item.Status.IsTerminal() {
			results[i] = m.resultFor(item)
			continue
		}
		if err := m.sem.Acquire(ctx, 1); err != nil {
			results[i] = m.cancelItem(item, "cancelled by context")
			continue
		}
		m.waitLaunchSlot(ctx)

		wg.Add(1)
		go func(i int, item *models.QueueItem) {
			defer wg.Done()
			defer m.sem.Release(1)
			results[i] = m.download(ctx, item)
		}(i, item)
	}

	wg.Wait()
	return results
}

// runItem is the single-enqueue path through the same launch gate.
func (m *Manager) runItem(ctx context.Context, item *models.QueueItem) models.DownloadResult {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return m.cancelItem(item, "cancelled by context")
	}
	defer m.sem.Release(1)
	m.waitLaunchSlot(ctx)
	return m.download(ctx, item)
}

// waitLaunchSlot spaces out launches by the configured delay. The delay
// shapes launch timing only; it never affects completion order.
func (m *Manager) waitLaunchSlot(ctx context.Context) {
	if m.launchDelay <= 0 {
		return
	}
	m.launchMu.Lock()
	defer m.launchMu.Unlock()
	if !m.lastLaunch.IsZero() {
		if wait := m.launchDelay - time.Since(m.lastLaunch); wait > 0 {
			_ = retry.Wait(ctx, wait)
		}
	}
	m.lastLaunch = time.Now()
}

// download runs the retry loop for one item until it is terminal.
func (m *Manager) download(ctx context.Context, item *models.QueueItem) models.DownloadResult {
	m.mu.Lock()
	if item.Status != models.StatusPending {
		// cancelled while waiting for a slot
		m.mu.Unlock()
		return m.resultFor(item)
	}
	item.Status = models.StatusDownloading
	item.StartedAt = time.Now()
	m.mu.Unlock()
	m.notify()

	for {
		if m.isCancelled(item) {
			return m.resultFor(item)
		}
		suggested := GenerateFilename(item.Image, m.clock(), shortHash(item.Image.URL))

		dctx := ctx
		var cancel context.CancelFunc
		if m.timeout > 0 {
			dctx, cancel = context.WithTimeout(ctx, m.timeout)
		}
		final, err := m.facility.Download(dctx, item.Image.URL, suggested)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return m.complete(item, final)
		}

		if !errs.IsRetryableError(err) {
			return m.fail(item, err)
		}
		// cancelled while the attempt was in flight; stop retrying
		if m.isCancelled(item) {
			return m.resultFor(item)
		}
		if item.RetryCount >= m.maxRetries {
			m.logger.ErrorWithFields("retries exhausted", map[string]interface{}{
				"item_id": item.ID,
				"url":     item.Image.URL,
				"retries": item.RetryCount,
				"error":   err.Error(),
			})
			return m.fail(item, err)
		}

		m.mu.Lock()
		item.RetryCount++
		rc := item.RetryCount
		m.mu.Unlock()
		m.notify()

		// Linear backoff: delay grows with the retry counter.
		delay := time.Duration(rc) * m.retryDelay
		m.logger.WarnWithFields("download failed, retrying", map[string]interface{}{
			"item_id":  item.ID,
			"url":      item.Image.URL,
			"retry":    rc,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		if werr := retry.Wait(ctx, delay); werr != nil {
			return m.fail(item, errs.Wrap(errs.KindTimeout, werr, "retry wait cancelled"))
		}
	}
}

// complete moves an item into the completed map, unless it was cancelled
// while the download was in flight.
func (m *Manager) complete(item *models.QueueItem, filename string) models.DownloadResult {
	m.mu.Lock()
	if item.Status == models.StatusCancelled {
		m.mu.Unlock()
		return m.resultFor(item)
	}
	item.Status = models.StatusCompleted
	item.Filename = filename
	item.EndedAt = time.Now()
	delete(m.pending, item.ID)
	m.completed[item.ID] = item
	m.mu.Unlock()
	m.notify()

	m.logger.DebugWithFields("download completed", map[string]interface{}{
		"item_id":  item.ID,
		"filename": filename,
		"retries":  item.RetryCount,
	})
	return m.resultFor(item)
}

// fail moves an item into the failed map with the last error attached.
func (m *Manager) fail(item *models.QueueItem, err error) models.DownloadResult {
	m.mu.Lock()
	if item.Status == models.StatusCancelled {
		m.mu.Unlock()
		return m.resultFor(item)
	}
	item.Status = models.StatusFailed
	item.Error = err.Error()
	item.EndedAt = time.Now()
	delete(m.pending, item.ID)
	m.failed[item.ID] = item
	m.mu.Unlock()
	m.notify()
	return m.resultFor(item)
}

func (m *Manager) isCancelled(item *models.QueueItem) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return item.Status == models.StatusCancelled
}

// cancelItem handles context cancellation before the item ever launched.
func (m *Manager) cancelItem(item *models.QueueItem, msg string) models.DownloadResult {
	m.mu.Lock()
	if !item.Status.IsTerminal() {
		item.Status = models.StatusCancelled
		item.Error = msg
		item.EndedAt = time.Now()
		delete(m.pending, item.ID)
		m.failed[item.ID] = item
	}
	m.mu.Unlock()
	m.notify()
	return m.resultFor(item)
}

func (m *Manager) resultFor(item *models.QueueItem) models.DownloadResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := models.DownloadResult{
		ItemID:     item.ID,
		URL:        item.Image.URL,
		Success:    item.Status == models.StatusCompleted,
		Filename:   item.Filename,
		Error:      item.Error,
		RetryCount: item.RetryCount,
		StartedAt:  item.StartedAt,
		EndedAt:    item.EndedAt,
	}
	if !item.StartedAt.IsZero() && !item.EndedAt.IsZero() {
		r.Duration = item.EndedAt.Sub(item.StartedAt)
	}
	return r
}

func (m *Manager) collect(results []models.DownloadResult) models.BatchResult {
	br := models.BatchResult{Results: results}
	for _, r := range results {
		if r.Success {
			br.Succeeded++
		} else {
			br.Failed++
		}
	}
	return br
}

// snapshotLocked recomputes the aggregate; callers hold m.mu.
func (m *Manager) snapshotLocked() models.ProgressSnapshot {
	var pending, inProgress int
	for _, item := range m.pending {
		if item.Status == models.StatusDownloading {
			inProgress++
		} else {
			pending++
		}
	}
	snap := models.ProgressSnapshot{
		Pending:    pending,
		InProgress: inProgress,
		Completed:  len(m.completed),
		Failed:     len(m.failed),
	}
	snap.Total = pending + inProgress + snap.Completed + snap.Failed
	if snap.Total > 0 {
		snap.Percent = float64(snap.Completed+snap.Failed) / float64(snap.Total) * 100
	}
	if !m.startedAt.IsZero() {
		snap.StartedAt = m.startedAt
		snap.Elapsed = time.Since(m.startedAt)
		if secs := snap.Elapsed.Seconds(); secs > 0 {
			snap.Rate = float64(snap.Completed) / secs
		}
		if remaining := pending + inProgress; remaining > 0 && snap.Rate > 0 {
			snap.ETA = time.Duration(float64(remaining) / snap.Rate * float64(time.Second))
		}
	}
	return snap
}

// notify delivers a fresh snapshot to every observer, outside the map lock.
func (m *Manager) notify() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.obsMu.RLock()
	observers := m.observers
	m.obsMu.RUnlock()
	for _, o := range observers {
		o(snap)
	}
}

func validateImage(img models.ImageDescriptor) error {
	u, err := url.Parse(img.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.New(errs.KindValidation, "invalid image URL %q", img.URL)
	}
	return nil
}
