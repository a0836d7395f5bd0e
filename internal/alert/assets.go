package alert

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// AssetChecker reports whether an asset file is present.
type AssetChecker interface {
	Exists(path string) bool
}

// StatChecker checks assets with os.Stat on every call.
type StatChecker struct{}

// Exists reports whether path names a regular file.
func (StatChecker) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// AssetWatcher tracks the presence of a fixed set of asset files through
// fsnotify, so an alert never touches the disk to decide what to render.
// Files added or removed while the session runs are picked up.
type AssetWatcher struct {
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	present map[string]bool // absolute path -> exists

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewAssetWatcher starts watching the directories that hold paths. Empty
// paths are ignored.
func NewAssetWatcher(paths ...string) (*AssetWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &AssetWatcher{
		watcher: watcher,
		present: make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.present[abs] = StatChecker{}.Exists(abs)
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		// A missing directory cannot be watched; its files stay absent
		// until the next stat fallback.
		_ = watcher.Add(dir)
	}

	go w.watchLoop()
	return w, nil
}

func (w *AssetWatcher) watchLoop() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.mu.Lock()
			if _, tracked := w.present[ev.Name]; tracked {
				w.present[ev.Name] = StatChecker{}.Exists(ev.Name)
			}
			w.mu.Unlock()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Exists reports whether path is present. Untracked paths fall back to
// os.Stat.
func (w *AssetWatcher) Exists(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil || path == "" {
		return false
	}
	w.mu.RLock()
	present, tracked := w.present[abs]
	w.mu.RUnlock()
	if !tracked {
		return StatChecker{}.Exists(abs)
	}
	return present
}

// Close stops watching.
func (w *AssetWatcher) Close() error {
	select {
	case <-w.stopCh:
		return nil
	default:
	}
	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	return err
}
