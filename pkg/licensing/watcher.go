package licensing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors a license key file and re-validates through the
// service whenever the file is replaced, so a gateway picks up a
// reissued license without a restart. Editors and secret mounts replace
// files via rename, so the parent directory is watched rather than the
// file itself.
type Watcher struct {
	service  *Service
	path     string
	opts     VerifyOptions
	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stop     chan struct{}

	mu          sync.Mutex
	lastModTime time.Time
}

// NewWatcher creates a watcher for the license file at path.
func NewWatcher(service *Service, path string, opts VerifyOptions) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		service: service,
		path:    filepath.Clean(path),
		opts:    opts,
		watcher: fsw,
		stop:    make(chan struct{}),
	}

	if stat, err := os.Stat(w.path); err == nil {
		w.lastModTime = stat.ModTime()
	}

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// Start begins watching. It returns immediately; reload work happens on a
// background goroutine until Stop is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
	log.Info().Str("path", w.path).Msg("Watching license file for changes")
}

func (w *Watcher) loop(ctx context.Context) {
	// Debounce: editors and atomic writers emit bursts of events for a
	// single logical replacement.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(500 * time.Millisecond)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("License file watcher error")
		case <-pending:
			pending = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	stat, err := os.Stat(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("License file unreadable after change event")
		return
	}

	w.mu.Lock()
	unchanged := !stat.ModTime().After(w.lastModTime)
	if !unchanged {
		w.lastModTime = stat.ModTime()
	}
	w.mu.Unlock()
	if unchanged {
		return
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("Failed to read updated license file")
		return
	}

	lic, err := w.service.Validate(ctx, string(data), w.opts)
	if err != nil {
		log.Warn().Err(err).Msg("Updated license file failed validation, keeping previous license")
		return
	}

	log.Info().
		Str("tier", string(lic.Payload.Tier)).
		Str("licensee", lic.Payload.Licensee).
		Msg("Reloaded license from file")
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
}
