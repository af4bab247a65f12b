package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (not recursive)
	InitialScan bool          // if true, emit one batch with the files already present
	SkipHidden  bool
	Debounce    time.Duration // coalesce rapid create/write/rename bursts into one batch
	Logger      *slog.Logger
}

// StartWatcher emits batches of new or changed PDF paths. Each batch is
// sorted and delivered once the directory has been quiet for Debounce. Both
// channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan []string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher.start.failed", "error", "no roots provided")
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watcher.create.failed", "error", err)
		return nil, nil, err
	}

	pending := map[string]struct{}{}
	for _, r := range cfg.Roots {
		if err := w.Add(r); err != nil {
			logger.Error("watcher.add.failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
		if cfg.InitialScan {
			docs, _, err := ScanDirectory(r, cfg.SkipHidden)
			if err != nil {
				_ = w.Close()
				return nil, nil, err
			}
			for _, d := range docs {
				pending[d.Path] = struct{}{}
			}
		}
	}

	evCh := make(chan []string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func(w *fsnotify.Watcher) {
			if err := w.Close(); err != nil {
				logger.Warn("watcher.close.failed", "error", err)
			}
		}(w)

		timer := time.NewTimer(cfg.Debounce)
		if len(pending) == 0 {
			stopTimer(timer)
		}

		flush := func() {
			if len(pending) == 0 {
				return
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			select {
			case evCh <- batch:
				logger.Debug("watcher.batch", "files", len(batch))
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !relevant(e, cfg.SkipHidden) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					flush()
					continue
				}
				stopTimer(timer)
				timer.Reset(cfg.Debounce)
			case <-timer.C:
				flush()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func relevant(e fsnotify.Event, skipHidden bool) bool {
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	if skipHidden && IsHidden(e.Name) {
		return false
	}
	if !AllowedExt(filepath.Ext(e.Name)) {
		return false
	}
	fi, err := os.Stat(e.Name)
	return err == nil && !fi.IsDir()
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
