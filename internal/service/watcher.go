package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watcher reloads the service when a new artifact generation is committed.
//
// It watches the artifact directory and reacts only to the manifest, since
// the manifest rename is the commit point. Events are debounced because a
// commit produces a create/rename burst.
type Watcher struct {
	service  *Retrieval
	manifest string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	done     chan struct{}
}

// NewWatcher starts watching the service's artifact directory. Call Close
// to stop it.
func NewWatcher(service *Retrieval, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(service.store.Dir()); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		service:  service,
		manifest: service.store.ManifestPath(),
		watcher:  fw,
		logger:   logger.With(slog.String("component", "watcher")),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.manifest {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.logger.Info("manifest changed, reloading")
			if err := w.service.Reload(context.Background()); err != nil {
				w.logger.Error("reload after manifest change failed",
					slog.String("error", err.Error()))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("artifact watch error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
