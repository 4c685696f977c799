package hotreload

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rindexer-go/rindexer/internal/common"
	"github.com/rindexer-go/rindexer/internal/logger"
)

// debounceInterval coalesces the burst of events most editors and
// `mv`-based atomic-save tools produce for a single logical edit.
const debounceInterval = 250 * time.Millisecond

// Watcher watches a manifest file for writes, renames, and the
// remove+recreate pattern atomic editors use, and emits a debounced
// notification on Changed().
type Watcher struct {
	path    string
	dir     string
	watcher *fsnotify.Watcher
	changed chan struct{}
	log     *logger.Logger
}

// NewWatcher opens an fsnotify watch on the manifest file's parent
// directory. Watching the directory rather than the file survives
// editors that replace the file via rename instead of writing in
// place.
func NewWatcher(path string, log *logger.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:    filepath.Clean(path),
		dir:     dir,
		watcher: fw,
		changed: make(chan struct{}, 1),
		log:     log.WithComponent(common.ComponentHotReload),
	}, nil
}

// Run pumps fsnotify events until ctx is cancelled, debouncing bursts
// that touch the manifest path into a single Changed() signal.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(debounceInterval)
			} else {
				pending.Reset(debounceInterval)
			}
			fire = pending.C

		case <-fire:
			fire = nil
			select {
			case w.changed <- struct{}{}:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("manifest watcher error", "error", err)
		}
	}
}

// Changed signals once per debounced burst of manifest file changes.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}
