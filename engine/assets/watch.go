package assets

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileWatcher reports changes to one file. Its directory is watched so
// editors that save by replacing the file are seen too.
type FileWatcher struct {
	w        *fsnotify.Watcher
	log      *zap.Logger
	path     string
	debounce time.Duration

	changes chan struct{}
	done    chan struct{}
	once    sync.Once
}

// WatchFile starts watching path. Bursts of events within debounce collapse
// into one notification on Changes.
func WatchFile(path string, debounce time.Duration, log *zap.Logger) (*FileWatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}

	fw := &FileWatcher{
		w:        w,
		log:      log,
		path:     abs,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go fw.loop()
	log.Debug("watching image file", zap.String("path", abs))
	return fw, nil
}

// Changes delivers at most one pending notification at a time.
func (fw *FileWatcher) Changes() <-chan struct{} { return fw.changes }

func (fw *FileWatcher) Path() string { return fw.path }

// Close stops watching. Safe to call more than once.
func (fw *FileWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.w.Close()
	})
	return err
}

func (fw *FileWatcher) loop() {
	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if !fw.relevant(ev) {
				continue
			}
			fw.log.Debug("image file changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			debounce.Reset(fw.debounce)

		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			fw.log.Warn("file watcher error", zap.Error(err))

		case <-debounce.C:
			select {
			case fw.changes <- struct{}{}:
			default:
			}

		case <-fw.done:
			return
		}
	}
}

func (fw *FileWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(ev.Name) == fw.path
}
