// Package storage persists downloaded media to the output directory with
// atomic writes and filename conflict resolution.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
)

// Getter fetches raw media bytes.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Facility downloads media into a directory on disk. It satisfies the
// queue's download sink contract: fetch, validate size, write atomically,
// return the final filename after conflict resolution.
type Facility struct {
	getter         Getter
	outputDir      string
	conflictPolicy string
	minFileSize    int64
	logger         logger.Logger

	// mu serializes conflict resolution and the rename that claims a name.
	mu sync.Mutex
}

// NewFacility creates the output directory if needed and returns a disk
// download facility.
func NewFacility(getter Getter, cfg config.OutputConfig, minFileSize int64, log logger.Logger) (*Facility, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "failed to create output directory %s", cfg.Directory)
	}
	return &Facility{
		getter:         getter,
		outputDir:      cfg.Directory,
		conflictPolicy: cfg.ConflictPolicy,
		minFileSize:    minFileSize,
		logger:         log,
	}, nil
}

// OutputDir returns the directory files are written into.
func (f *Facility) OutputDir() string { return f.outputDir }

// Download fetches the media at url and stores it under suggestedName,
// returning the name actually used. Undersized payloads are rejected as
// placeholders and never written.
func (f *Facility) Download(ctx context.Context, url, suggestedName string) (string, error) {
	data, err := f.getter.Get(ctx, url)
	if err != nil {
		return "", err
	}
	if int64(len(data)) < f.minFileSize {
		return "", errs.New(errs.KindValidation,
			"downloaded file is %d bytes, below the %d byte minimum (likely a placeholder)",
			len(data), f.minFileSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	final := f.resolveName(suggestedName)
	if err := f.writeAtomic(final, data); err != nil {
		return "", err
	}

	f.logger.DebugWithFields("saved media", map[string]interface{}{
		"filename": final,
		"bytes":    len(data),
	})
	return final, nil
}

// resolveName applies the conflict policy. Under uniquify an existing name
// becomes "name (1).ext", "name (2).ext" and so on; under overwrite the
// suggested name is used as-is.
func (f *Facility) resolveName(name string) string {
	if f.conflictPolicy == config.ConflictOverwrite {
		return name
	}
	if !f.exists(name) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if !f.exists(candidate) {
			return candidate
		}
	}
}

func (f *Facility) exists(name string) bool {
	_, err := os.Stat(filepath.Join(f.outputDir, name))
	return err == nil
}

// writeAtomic stages the payload in a temp file and renames it into place
// so a crash never leaves a truncated download behind.
func (f *Facility) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(f.outputDir, ".postgrab-*")
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.KindStorage, err, "failed to write %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.KindStorage, err, "failed to close temp file for %s", name)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.KindStorage, err, "failed to set permissions for %s", name)
	}
	if err := os.Rename(tmpName, filepath.Join(f.outputDir, name)); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.KindStorage, err, "failed to move %s into place", name)
	}
	return nil
}
