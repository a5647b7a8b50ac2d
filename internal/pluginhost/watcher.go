package pluginhost

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher discovers plugin files dropped into a pre-configured directory
// and loads them into a Host automatically, so an operator can add a
// plugin by copying a file rather than calling the admin surface.
// Grounded on the teacher's fsnotify-based directory watch: a single
// watcher goroutine over one directory, reacting to Create and Write events.
type Watcher struct {
	host   *Host
	dir    string
	native Loader
	wasm   Loader
	logger zerolog.Logger
}

// NewWatcher constructs a Watcher over dir. native/wasm select which Loader
// handles a discovered file by extension (.so/.dylib/.dll for native,
// .wasm for the component dialect).
func NewWatcher(host *Host, dir string, native, wasm Loader, logger zerolog.Logger) *Watcher {
	return &Watcher{host: host, dir: dir, native: native, wasm: wasm, logger: logger}
}

// Run blocks, watching dir until ctx is cancelled, loading every plugin
// file it sees created or written to.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pluginhost: create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("pluginhost: watch %q: %w", w.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("pluginhost: watcher event channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.loadDiscovered(event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("pluginhost: watcher error channel closed")
			}
			w.logger.Warn().Err(err).Msg("pluginhost: watcher error")
		}
	}
}

func (w *Watcher) loadDiscovered(path string) {
	loader := w.loaderFor(path)
	if loader == nil {
		return
	}
	kind, err := w.host.Load(loader, path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("pluginhost: discovered file failed to load")
		return
	}
	w.logger.Info().Str("kind", kind).Str("path", path).Msg("pluginhost: discovered and registered plugin")
}

func (w *Watcher) loaderFor(path string) Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".so", ".dylib", ".dll":
		return w.native
	case ".wasm":
		return w.wasm
	default:
		return nil
	}
}
