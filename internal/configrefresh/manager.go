// Package configrefresh keeps a resolved store snapshot for the config service
// and rebuilds it when the input document changes on disk.
package configrefresh

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"storecfg/internal/logging"
	"storecfg/internal/naming"
	"storecfg/internal/observability"
	"storecfg/internal/storeconfig"
)

// Resolution triggers recorded in metrics and logs.
const (
	TriggerStartup = "startup"
	TriggerWatch   = "watch"
	TriggerManual  = "manual"
)

// DefaultDebounce is the delay between the last file event and a rebuild.
const DefaultDebounce = 250 * time.Millisecond

// Snapshot is an immutable resolved store.
type Snapshot struct {
	Store       *storeconfig.Store
	Fingerprint string
	BuiltAt     time.Time
	Source      string
}

// Config controls refresh behavior.
type Config struct {
	// Path is the store document to load and watch.
	Path     string
	Naming   naming.Config
	Logger   *logging.Logger
	Metrics  *observability.ResolveMetrics
	Watch    bool
	Debounce time.Duration
}

// Manager maintains the active snapshot.
type Manager struct {
	path     string
	naming   naming.Config
	logger   *logging.Logger
	metrics  *observability.ResolveMetrics
	watch    bool
	debounce time.Duration

	active atomic.Pointer[Snapshot]

	// refreshMu serializes rebuilds from the watcher and RefreshNow.
	refreshMu sync.Mutex
	errMu     sync.Mutex
	lastErr   error

	wg sync.WaitGroup
}

// NewManager builds the initial snapshot and returns a manager. It fails when
// the document cannot be read or does not resolve.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("config refresh manager requires an input path")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	m := &Manager{
		path:     filepath.Clean(cfg.Path),
		naming:   cfg.Naming,
		logger:   cfg.Logger.WithFields(slog.String("component", "config_refresh")),
		metrics:  cfg.Metrics,
		watch:    cfg.Watch,
		debounce: cfg.Debounce,
	}

	if _, err := m.refresh(ctx, TriggerStartup); err != nil {
		return nil, err
	}
	return m, nil
}

// CurrentSnapshot returns the active snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	return m.active.Load()
}

// Store returns the active resolved store.
func (m *Manager) Store() *storeconfig.Store {
	if snapshot := m.active.Load(); snapshot != nil {
		return snapshot.Store
	}
	return nil
}

// LastError returns the error of the most recent failed rebuild, or nil when
// the last rebuild succeeded.
func (m *Manager) LastError() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

// RefreshNow rebuilds from disk. It reports whether the active snapshot was
// replaced; an unchanged document keeps the current snapshot.
func (m *Manager) RefreshNow(ctx context.Context) (bool, error) {
	return m.refresh(ctx, TriggerManual)
}

func (m *Manager) refresh(ctx context.Context, trigger string) (bool, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	data, err := os.ReadFile(m.path)
	if err != nil {
		err = fmt.Errorf("failed to read store document: %w", err)
		m.fail(ctx, trigger, start, err)
		return false, err
	}

	if current := m.active.Load(); current != nil && current.Fingerprint == Fingerprint(data) {
		m.logger.Debug("store document unchanged", slog.String("trigger", trigger))
		m.setLastErr(nil)
		return false, nil
	}

	snapshot, err := BuildSnapshot(ctx, BuildConfig{
		Source: m.path,
		Data:   data,
		Naming: m.naming,
		Logger: m.logger.Logger,
	})
	if err != nil {
		m.fail(ctx, trigger, start, err)
		return false, err
	}

	m.active.Store(snapshot)
	m.setLastErr(nil)
	m.metrics.RecordResolve(ctx, time.Since(start), trigger, len(snapshot.Store.Tables), 0)
	m.logger.Info("store resolved",
		slog.String("trigger", trigger),
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Int("namespaces", len(snapshot.Store.Namespaces)),
		slog.Int("tables", len(snapshot.Store.Tables)),
		slog.Duration("duration", time.Since(start)),
	)
	return true, nil
}

func (m *Manager) fail(ctx context.Context, trigger string, start time.Time, err error) {
	m.setLastErr(err)
	problems := Problems(err)
	m.metrics.RecordResolve(ctx, time.Since(start), trigger, 0, len(problems))

	keeping := m.active.Load() != nil
	for _, problem := range problems {
		m.logger.Error("store resolution problem",
			slog.String("trigger", trigger),
			slog.String("error", problem.Error()),
		)
	}
	if keeping {
		m.logger.Warn("keeping previous store snapshot", slog.String("trigger", trigger))
	}
}

func (m *Manager) setLastErr(err error) {
	m.errMu.Lock()
	m.lastErr = err
	m.errMu.Unlock()
}

// Start begins watching the input document. It is a no-op when watching is disabled.
func (m *Manager) Start(ctx context.Context) error {
	if !m.watch {
		m.logger.Info("store watch disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(m.path), err)
	}

	m.logger.Info("watching store document",
		slog.String("path", m.path),
		slog.Duration("debounce", m.debounce),
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer watcher.Close()
		m.watchLoop(ctx, watcher)
	}()
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	timer := time.NewTimer(m.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("store watch stopped")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !m.relevant(event) {
				continue
			}
			timer.Reset(m.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("file watcher error", slog.String("error", err.Error()))
		case <-timer.C:
			_, _ = m.refresh(ctx, TriggerWatch)
		}
	}
}

func (m *Manager) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != m.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// Wait blocks until the watch loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
