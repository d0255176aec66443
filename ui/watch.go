package ui

import (
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Writes arriving within this window are reported once.
const watchDebounce = 150 * time.Millisecond

// cacheWatcher reports changes to the cache directory, so that edits made
// by another cardshuffler process show up in a running shuffle.
type cacheWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
}

func newCacheWatcher(dir string) *cacheWatcher {
	if dir == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
		return nil
	}
	if err := w.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "dir", dir, "error", err)
		w.Close()
		return nil
	}

	log.Info("fsnotify watching dir", "dir", dir)
	return &cacheWatcher{dir: dir, watcher: w}
}

// relevant reports whether a change to name can alter the cached collection.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".tmp") || name == "cache.index" {
		return false
	}
	return true
}

// wait blocks until a relevant change happens and returns cacheChangedMsg.
func (w *cacheWatcher) wait() tea.Msg {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			w.settle()
			return cacheChangedMsg{}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", w.dir, "error", err)
		}
	}
}

// settle swallows the burst of events that follows a single write.
func (w *cacheWatcher) settle() {
	timer := time.NewTimer(watchDebounce)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-w.watcher.Events:
			if !ok {
				return
			}
		case <-timer.C:
			return
		}
	}
}

func (w *cacheWatcher) close() {
	if err := w.watcher.Close(); err != nil {
		log.Error("fsnotify fail to close watcher", "dir", w.dir, "error", err)
		return
	}
	log.Debug("fsnotify dir unwatched", "dir", w.dir)
}
