package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"governor-hq/ganymede/pkg/policy"
)

// Watcher watches a definitions path and feeds newly appearing definitions
// into a registry. Changes are debounced to prevent reload storms, and
// definitions already registered (by trigger pattern + action) are skipped:
// hot reload adds policies, it never mutates runtime state.
type Watcher struct {
	source   *FileSource
	registry *policy.Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// debounceInterval is how long to wait after the last change before
	// reloading.
	debounceInterval time.Duration

	mu      sync.Mutex
	running bool

	// seen tracks trigger+action pairs already registered.
	seen map[string]struct{}
}

// NewWatcher creates a definitions watcher over the given source and registry.
func NewWatcher(source *FileSource, registry *policy.Registry, logger *slog.Logger) (*Watcher, error) {
	if source == nil || registry == nil {
		return nil, fmt.Errorf("source and registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	// Policies already in the registry (e.g. rehydrated from the audit log)
	// must not be registered again from the definitions file. The registry
	// stores patterns normalized, so keys are built the same way.
	seen := make(map[string]struct{})
	for _, p := range registry.List() {
		seen[policy.NormalizePattern(p.TriggerPattern)+"\x00"+p.Action] = struct{}{}
	}

	return &Watcher{
		source:           source,
		registry:         registry,
		watcher:          fw,
		logger:           logger.With("component", "policy.source.watcher"),
		debounceInterval: 100 * time.Millisecond,
		seen:             seen,
	}, nil
}

// Start performs an initial load and then watches for changes until the
// context is cancelled. It blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.watcher.Close()
	}()

	if err := w.addPath(w.source.path); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	// Initial load.
	w.reload(ctx)

	w.logger.Info("definitions watcher started", "path", w.source.path)

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			w.logger.Debug("definitions change detected",
				"path", event.Name,
				"op", event.Op.String(),
			)
			if debounce == nil {
				debounce = time.NewTimer(w.debounceInterval)
			} else {
				debounce.Reset(w.debounceInterval)
			}
			debounceCh = debounce.C

		case <-debounceCh:
			debounceCh = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("definitions watcher error", "error", err)
		}
	}
}

// reload loads definitions and registers the ones not seen before.
func (w *Watcher) reload(ctx context.Context) {
	defs, err := w.source.LoadDefinitions(ctx)
	if err != nil {
		w.logger.Error("failed to load definitions", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	added := 0
	for _, def := range defs {
		key := policy.NormalizePattern(def.TriggerPattern) + "\x00" + def.Action
		if _, ok := w.seen[key]; ok {
			continue
		}
		if _, err := w.registry.Register(ctx, def); err != nil {
			w.logger.Warn("skipping invalid definition",
				"name", def.Name,
				"error", err,
			)
			continue
		}
		w.seen[key] = struct{}{}
		added++
	}

	if added > 0 {
		w.logger.Info("definitions registered from source", "added", added)
	}
}

// addPath registers the path (and, for a directory, the directory itself)
// with the underlying fsnotify watcher.
func (w *Watcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return w.watcher.Add(path)
	}
	// Watch the parent directory so atomic renames are observed.
	return w.watcher.Add(filepath.Dir(path))
}

// relevantEvent filters for content-changing operations on YAML files.
func relevantEvent(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	ext := filepath.Ext(event.Name)
	return ext == ".yaml" || ext == ".yml"
}
