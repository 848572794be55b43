package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alexanderramin/complytrack/internal/importer"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// ReloadFunc applies a freshly parsed matrix file.
type ReloadFunc func(ctx context.Context, f *importer.MatrixFile) error

// WatcherConfig carries the optional settings of a MatrixWatcher.
type WatcherConfig struct {
	Debounce time.Duration
	Logger   *slog.Logger
	Metrics  *Metrics
}

// MatrixWatcher re-imports the training matrix file whenever its content
// changes on disk. The parent directory is watched so that editors which
// replace the file by rename are still seen.
type MatrixWatcher struct {
	path     string
	reload   ReloadFunc
	debounce time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	mu      sync.Mutex
	hash    string
	pending bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewMatrixWatcher(path string, reload ReloadFunc, cfg WatcherConfig) (*MatrixWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving matrix path: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &MatrixWatcher{
		path:     abs,
		reload:   reload,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		done:     make(chan struct{}),
	}, nil
}

// Path is the absolute path of the watched file.
func (w *MatrixWatcher) Path() string { return w.path }

// Sync reloads the file if its content differs from the last successful
// load. It reports whether a reload happened.
func (w *MatrixWatcher) Sync(ctx context.Context) (bool, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, fmt.Errorf("reading matrix file: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	unchanged := hash == w.hash
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	f, err := importer.ParseMatrix(data)
	if err != nil {
		w.countReload("error")
		return false, err
	}
	if err := w.reload(ctx, f); err != nil {
		w.countReload("error")
		return false, fmt.Errorf("reloading %s: %w", filepath.Base(w.path), err)
	}

	w.mu.Lock()
	w.hash = hash
	w.mu.Unlock()
	w.countReload("success")
	w.logger.InfoContext(ctx, "training matrix reloaded",
		"path", w.path, "trainings", len(f.Trainings), "entries", len(f.Matrix))
	return true, nil
}

// Start begins watching in the background until ctx is done or Stop is
// called.
func (w *MatrixWatcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = fsw

	go w.processEvents(ctx)
	w.logger.Info("matrix watcher started", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *MatrixWatcher) Stop() error {
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *MatrixWatcher) processEvents(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.mu.Lock()
				w.pending = true
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("matrix watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *MatrixWatcher) flushPending(ctx context.Context) {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		// Mid-rename; the create event that follows sets pending again.
		return
	}
	if _, err := w.Sync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "matrix reload failed, keeping previous matrix", "path", w.path, "error", err)
	}
}

func (w *MatrixWatcher) countReload(outcome string) {
	if w.metrics != nil {
		w.metrics.MatrixReloads.WithLabelValues(outcome).Inc()
	}
}
