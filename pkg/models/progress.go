package models

import "time"

// ProgressSnapshot is a point-in-time aggregate over the queue maps. It is
// recomputed on every mutation and never persisted.
type ProgressSnapshot struct {
	Total      int     `json:"total"`
	Pending    int     `json:"pending"`
	InProgress int     `json:"in_progress"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Percent    float64 `json:"percent"`

	// StartedAt is when the first item was enqueued; zero if nothing was.
	StartedAt time.Time     `json:"started_at,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	// Rate is completed items per second since StartedAt.
	Rate float64 `json:"rate"`
	// ETA estimates time remaining at the current rate; zero when unknown.
	ETA time.Duration `json:"eta"`
}

// Equal compares two snapshots ignoring the elapsed-time derived fields.
func (p ProgressSnapshot) Equal(o ProgressSnapshot) bool {
	return p.Total == o.Total &&
		p.Pending == o.Pending &&
		p.InProgress == o.InProgress &&
		p.Completed == o.Completed &&
		p.Failed == o.Failed &&
		p.Percent == o.Percent &&
		p.StartedAt.Equal(o.StartedAt)
}
