package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nvandessel/nudge/internal/library"
	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/pathutil"
)

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Path is the constraint document to watch.
	Path string

	// Debounce collapses bursts of events into one reload. Zero reloads on
	// every event.
	Debounce time.Duration

	// ParseOptions are passed to LoadFile on every reload.
	ParseOptions []Option

	// Logger receives reload outcomes. Defaults to a discarding logger.
	Logger *slog.Logger

	// OnReload, if set, is called after every reload attempt with the new
	// pack or the error that kept the old one.
	OnReload func(pack *library.Pack, err error)
}

// Watcher rebuilds the pack when its document changes and publishes it
// through a Holder. A document that fails to load is logged and the
// previously published pack stays in place.
type Watcher struct {
	holder *library.Holder
	path   string
	cfg    WatchConfig
	logger *slog.Logger
}

// NewWatcher creates a watcher for cfg.Path publishing into holder.
func NewWatcher(holder *library.Holder, cfg WatchConfig) (*Watcher, error) {
	if holder == nil {
		return nil, fmt.Errorf("watcher: holder is nil")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("watcher: path is empty")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("watcher: resolving %s: %w", pathutil.RedactPath(cfg.Path), err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		holder: holder,
		path:   filepath.Clean(abs),
		cfg:    cfg,
		logger: logger.With("component", "library_watcher"),
	}, nil
}

// Reload loads the document once and publishes it on success.
func (w *Watcher) Reload() error {
	start := time.Now()
	pack, err := LoadFile(w.path, w.cfg.ParseOptions...)
	if w.cfg.OnReload != nil {
		w.cfg.OnReload(pack, err)
	}
	if err != nil {
		w.logger.Error("library reload failed, keeping current pack",
			"file", pathutil.RedactPath(w.path),
			"error", err)
		return err
	}

	prev := w.holder.Swap(pack)
	attrs := []any{
		"file", pathutil.RedactPath(w.path),
		"version", pack.Version(),
		"constraints", pack.Len(),
		"duration", time.Since(start),
	}
	if prev != nil {
		attrs = append(attrs, "previous_version", prev.Version())
	}
	w.logger.Info("library reloaded", attrs...)
	return nil
}

// Run watches the document's directory until ctx is done. Watching the
// directory rather than the file survives editors that save by rename.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watcher: watching %s: %w", pathutil.RedactPath(dir), err)
	}
	w.logger.Info("watching library for changes", "file", pathutil.RedactPath(w.path))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("library watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("library file event", "op", event.Op.String())

			if w.cfg.Debounce <= 0 {
				_ = w.Reload()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			_ = w.Reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("library watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}
