package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"postgrab/pkg/models"
)

const progressBarWidth = 30

// ProgressLine renders queue snapshots as a single rewritten terminal line.
// It plugs straight into the queue manager as an observer.
type ProgressLine struct {
	w  io.Writer
	mu sync.Mutex
}

// NewProgressLine writes progress to w.
func NewProgressLine(w io.Writer) *ProgressLine {
	return &ProgressLine{w: w}
}

// Update redraws the line for the given snapshot.
func (p *ProgressLine) Update(snap models.ProgressSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	filled := 0
	if snap.Total > 0 {
		filled = int(snap.Percent / 100 * progressBarWidth)
		if filled > progressBarWidth {
			filled = progressBarWidth
		}
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	fmt.Fprintf(p.w, "\r[%s] %3.0f%%  done %d  failed %d  active %d  queued %d",
		bar, snap.Percent, snap.Completed, snap.Failed, snap.InProgress, snap.Pending)
}

// Finish terminates the progress line.
func (p *ProgressLine) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
}
