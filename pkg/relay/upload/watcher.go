package upload

import (
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watcher marks the registry dirty when the upload directory changes
// underneath it, so the next DrainEvents call from the reactor's sweep
// resyncs without waiting for a list request.
//
// Events are drained non-blockingly from the reactor thread; the
// fsnotify goroutine only flips a channel, it never touches the index.
type watcher struct {
	fs    *fsnotify.Watcher
	dirty chan struct{}
	log   *zap.Logger
}

// Watch starts watching the upload directory. Safe to skip entirely;
// the registry still resyncs on every list.
func (r *Registry) Watch() error {
	if r.watcher != nil {
		return nil
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return &SyncError{Err: err}
	}
	if err := fs.Add(r.dir); err != nil {
		fs.Close()
		return &SyncError{Err: err}
	}
	w := &watcher{fs: fs, dirty: make(chan struct{}, 1), log: r.log}
	go w.run()
	r.watcher = w
	return nil
}

func (w *watcher) run() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				select {
				case w.dirty <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("upload watcher error", zap.Error(err))
		}
	}
}

// DrainEvents resyncs the index if the watcher flagged a change since
// the last call. Called from the reactor sweep; never blocks.
func (r *Registry) DrainEvents() {
	if r.watcher == nil {
		return
	}
	select {
	case <-r.watcher.dirty:
		if err := r.Sync(); err != nil {
			r.log.Warn("upload resync failed", zap.Error(err))
		}
	default:
	}
}

// CloseWatcher stops the directory watcher, if one was started.
func (r *Registry) CloseWatcher() {
	if r.watcher != nil {
		r.watcher.fs.Close()
		r.watcher = nil
	}
}
