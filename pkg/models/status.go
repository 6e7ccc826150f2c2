package models

import "time"

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// QueueItem is a tracked download request. It lives in exactly one of the
// manager's pending/completed/failed maps and is mutated in place by the
// retry loop until it reaches a terminal status.
type QueueItem struct {
	ID         string          `json:"id"`
	Image      ImageDescriptor `json:"image"`
	RetryCount int             `json:"retry_count"`
	Status     Status          `json:"status"`
	Filename   string          `json:"filename,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	StartedAt  time.Time       `json:"started_at,omitempty"`
	EndedAt    time.Time       `json:"ended_at,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// DownloadResult is the terminal outcome of a single queue item.
type DownloadResult struct {
	ItemID     string        `json:"item_id"`
	URL        string        `json:"url"`
	Success    bool          `json:"success"`
	Filename   string        `json:"filename,omitempty"`
	Error      string        `json:"error,omitempty"`
	RetryCount int           `json:"retry_count"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	Duration   time.Duration `json:"duration"`
}

// BatchResult aggregates the per-item outcomes of one batch enqueue.
type BatchResult struct {
	Results   []DownloadResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}
