package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// TuningStore holds the tuning currently in effect. Readers take a snapshot
// per decision, so a reload never changes a search that is already running.
type TuningStore struct {
	v atomic.Pointer[Tuning]
}

func NewTuningStore(t Tuning) *TuningStore {
	s := &TuningStore{}
	s.Store(t)
	return s
}

func (s *TuningStore) Load() Tuning {
	return *s.v.Load()
}

func (s *TuningStore) Store(t Tuning) {
	s.v.Store(&t)
}

// WatchTuning reloads path into store whenever the file is written or
// recreated, until ctx is cancelled. Invalid files are logged and ignored,
// leaving the previous tuning in place.
//
// The parent directory is watched rather than the file so editors that save
// by rename are picked up.
func WatchTuning(ctx context.Context, path string, store *TuningStore, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				t, err := LoadTuning(abs)
				if err != nil {
					logger.Warn("tuning reload rejected", "path", abs, "err", err)
					continue
				}
				store.Store(t)
				logger.Info("tuning reloaded", "path", abs, "depth", t.Depth, "iterative", t.IterativeDeepening, "max_depth", t.MaxDepth)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("tuning watcher error", "err", err)
			}
		}
	}()

	return nil
}
