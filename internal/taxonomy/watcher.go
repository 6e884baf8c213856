package taxonomy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Holder publishes the current taxonomy to concurrent readers.
type Holder struct {
	cur atomic.Pointer[Taxonomy]
}

// NewHolder creates a holder seeded with t.
func NewHolder(t *Taxonomy) *Holder {
	h := &Holder{}
	h.cur.Store(t)
	return h
}

// Get returns the current taxonomy.
func (h *Holder) Get() *Taxonomy { return h.cur.Load() }

// Store swaps in a new taxonomy.
func (h *Holder) Store(t *Taxonomy) { h.cur.Store(t) }

// Watch reloads the taxonomy file into h whenever it is written or replaced, until ctx
// is done. The parent directory is watched so editors that rename over the file are seen.
// A file that fails to load leaves the previous taxonomy in place.
func Watch(ctx context.Context, path string, h *Holder, logger *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create taxonomy watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve taxonomy path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch taxonomy dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			reload(abs, h, logger)
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Taxonomy watcher error", zap.Error(werr))
		}
	}
}

func reload(path string, h *Holder, logger *zap.Logger) {
	t, err := Load(path)
	if err != nil {
		logger.Warn("Taxonomy reload failed, keeping previous version",
			zap.String("path", path), zap.Error(err))
		return
	}
	prev := h.Get()
	h.Store(t)
	prevVersion := 0
	if prev != nil {
		prevVersion = prev.Version
	}
	logger.Info("Taxonomy reloaded",
		zap.String("path", path),
		zap.Int("previous_version", prevVersion),
		zap.Int("version", t.Version),
		zap.Int("domains", len(t.Domains)),
	)
}
