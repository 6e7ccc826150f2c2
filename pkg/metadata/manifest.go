// Package metadata writes a JSON manifest alongside downloads recording
// where each file came from and how the download went.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
	"postgrab/pkg/models"
)

// Entry records one image and its download outcome.
type Entry struct {
	Image    models.ImageDescriptor `json:"image"`
	Filename string                 `json:"filename,omitempty"`
	Success  bool                   `json:"success"`
	Error    string                 `json:"error,omitempty"`
	Retries  int                    `json:"retries,omitempty"`
}

// Manifest is the on-disk record for one grabbed page.
type Manifest struct {
	PageURL     string    `json:"page_url"`
	GeneratedAt time.Time `json:"generated_at"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Entries     []Entry   `json:"entries"`
}

// Writer persists manifests into the output directory.
type Writer struct {
	dir    string
	logger logger.Logger
}

// NewWriter creates a manifest writer targeting dir.
func NewWriter(dir string, log logger.Logger) *Writer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{dir: dir, logger: log}
}

// Write pairs images with their results by index and writes a timestamped
// manifest file, returning its path.
func (w *Writer) Write(pageURL string, images []models.ImageDescriptor, results []models.DownloadResult) (string, error) {
	m := Manifest{
		PageURL:     pageURL,
		GeneratedAt: time.Now().UTC(),
		Entries:     make([]Entry, 0, len(images)),
	}
	for i, img := range images {
		entry := Entry{Image: img}
		if i < len(results) {
			r := results[i]
			entry.Filename = r.Filename
			entry.Success = r.Success
			entry.Error = r.Error
			entry.Retries = r.RetryCount
		}
		if entry.Success {
			m.Succeeded++
		} else {
			m.Failed++
		}
		m.Entries = append(m.Entries, entry)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.KindStorage, err, "failed to encode manifest")
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errs.Wrap(errs.KindStorage, err, "failed to create manifest directory")
	}
	name := fmt.Sprintf("manifest_%s.json", m.GeneratedAt.Format("20060102150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errs.Wrap(errs.KindStorage, err, "failed to write manifest")
	}

	w.logger.DebugWithFields("manifest written", map[string]interface{}{
		"path":    path,
		"entries": len(m.Entries),
	})
	return path, nil
}
