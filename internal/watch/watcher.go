package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"randomizer/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler receives a report after each settled change to the catalog.
type Handler func(Report)

// CatalogWatcher re-validates a catalog file whenever it changes. The parent
// directory is watched so editors that replace the file on save are seen.
type CatalogWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	handler     Handler
	pending     time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// Stats counts watcher activity.
type Stats struct {
	Events int
	Checks int
	Errors int
}

// NewCatalogWatcher creates a watcher for the catalog at path.
func NewCatalogWatcher(path string, handler Handler) (*CatalogWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &CatalogWatcher{
		watcher:     watcher,
		path:        abs,
		handler:     handler,
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetDebounce changes how long the file must be quiet before it is checked.
func (cw *CatalogWatcher) SetDebounce(d time.Duration) {
	cw.mu.Lock()
	cw.debounceDur = d
	cw.mu.Unlock()
}

// Start begins watching. It is non-blocking.
func (cw *CatalogWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return nil
	}

	dir := filepath.Dir(cw.path)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	cw.running = true
	logging.Get(logging.CategoryWatch).Info("watching catalog", zap.String("path", cw.path))

	go cw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (cw *CatalogWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		_ = cw.watcher.Close()
		return
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	<-cw.doneCh

	if err := cw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher", zap.Error(err))
	}
}

// Stats returns a snapshot of the watcher counters.
func (cw *CatalogWatcher) Stats() Stats {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.stats
}

func (cw *CatalogWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watch error", zap.Error(err))
			cw.mu.Lock()
			cw.stats.Errors++
			cw.mu.Unlock()
		case <-ticker.C:
			cw.processDebounced()
		}
	}
}

func (cw *CatalogWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != cw.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	logging.Get(logging.CategoryWatch).Debug("catalog event",
		zap.String("op", event.Op.String()),
		zap.String("path", event.Name))

	cw.mu.Lock()
	cw.stats.Events++
	cw.pending = time.Now()
	cw.mu.Unlock()
}

func (cw *CatalogWatcher) processDebounced() {
	cw.mu.Lock()
	if cw.pending.IsZero() || time.Since(cw.pending) < cw.debounceDur {
		cw.mu.Unlock()
		return
	}
	cw.pending = time.Time{}
	cw.stats.Checks++
	cw.mu.Unlock()

	report := Check(cw.path)
	if !report.OK() {
		logging.Get(logging.CategoryWatch).Warn("catalog invalid", zap.Error(report.Err))
	}
	if cw.handler != nil {
		cw.handler(report)
	}
}
