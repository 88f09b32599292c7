// Package watch turns raw filesystem notifications into typed change
// events. A single recursive subscription covers the whole working tree;
// each event is classified as a message file change or any other change,
// so the trigger logic upstream never compares path strings.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/dayfold/dayfold/internal/output"
)

// EventKind tags a change event.
type EventKind int

const (
	MessageChanged EventKind = iota
	OtherChanged
)

// Event is one classified filesystem change.
type Event struct {
	Kind EventKind
	Path string // repo-relative, slash-separated
}

// Watcher subscribes to changes under a repository root.
type Watcher struct {
	root      string
	ignore    map[string]bool
	isMessage func(path string) bool
	ui        *output.UI

	fsw    *fsnotify.Watcher
	events chan Event
	done   chan struct{}
}

// New creates a Watcher. isMessage classifies repo-relative paths;
// ignoreDirs are directory names skipped anywhere in the tree.
func New(root string, ignoreDirs []string, isMessage func(string) bool, ui *output.UI) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ignore := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = true
	}

	w := &Watcher{
		root:      root,
		ignore:    ignore,
		isMessage: isMessage,
		ui:        ui,
		fsw:       fsw,
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Events is the classified change stream. Closed when the watcher stops.
func (w *Watcher) Events() <-chan Event { return w.events }

// Close stops watching and closes the event channel.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.events)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.ui.Debug("watch error: %v", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || w.ignored(rel) {
		return
	}
	rel = filepath.ToSlash(rel)

	// New directories join the subscription so the watch stays recursive.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(ev.Name)
			return
		}
	}

	kind := OtherChanged
	if w.isMessage(rel) {
		kind = MessageChanged
	}

	select {
	case w.events <- Event{Kind: kind, Path: rel}:
	default:
		// Channel full: a debounced consumer will see the state anyway.
		w.ui.Debug("watch: dropped event for %s", rel)
	}
}

func (w *Watcher) ignored(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignore[part] {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr == nil && rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			w.ui.Debug("watch: cannot watch %s: %v", path, addErr)
		}
		return nil
	})
}
