package docstore

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jsreport/fsstore/pkg/fs"
)

// watchDebounce merges bursts of filesystem events for the same path within
// this window into a single reconciliation, so a single external edit
// (typically create-then-write) only triggers one reload.
const watchDebounce = 75 * time.Millisecond

// watcher observes dataDir for externally made changes and reconciles them
// into the in-memory index via the write queue.
//
// Paths inside a staging directory (name begins with '~') are ignored
// outright - they are this package's own in-flight transactions, never an
// external document. Everything else is checked against selfWrite before
// being treated as external.
type watcher struct {
	fsys      fs.FS
	dataDir   string
	schema    *Schema
	selfWrite *selfWriteTracker
	queue     *writeQueue
	reconcile func(ctx context.Context, set EntitySetDescriptor, publicKey string) error
	logger    Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped chan struct{}
	done    chan struct{}
}

func newWatcher(
	fsys fs.FS,
	dataDir string,
	schema *Schema,
	selfWrite *selfWriteTracker,
	queue *writeQueue,
	logger Logger,
	reconcile func(ctx context.Context, set EntitySetDescriptor, publicKey string) error,
) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ioErr("", "", err)
	}

	w := &watcher{
		fsys:      fsys,
		dataDir:   dataDir,
		schema:    schema,
		selfWrite: selfWrite,
		queue:     queue,
		reconcile: reconcile,
		logger:    logger,
		fsw:       fsw,
		timers:    make(map[string]*time.Timer),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	if err := w.recursiveAdd(dataDir); err != nil {
		_ = fsw.Close()
		return nil, ioErr("", "", err)
	}

	go w.run()

	return w, nil
}

// recursiveAdd registers dataDir and every subdirectory except staging
// directories with the underlying fsnotify watcher. fsnotify does not watch
// new subdirectories created after Add, so the dedicated watch loop also
// adds directories it observes being created.
func (w *watcher) recursiveAdd(root string) error {
	entries, err := w.fsys.ReadDir(root)
	if err != nil {
		return err
	}

	if err := w.fsw.Add(root); err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "~") {
			continue
		}

		if err := w.recursiveAdd(filepath.Join(root, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

func (w *watcher) run() {
	defer close(w.done)

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

			if w.logger != nil {
				w.logger.Error("watcher error", "err", err)
			}
		case <-w.stopped:
			return
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	if w.shouldIgnore(ev) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := w.fsys.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.recursiveAdd(ev.Name)
		}
	}

	set, publicKey, ok := w.resolve(ev.Name)
	if !ok {
		return
	}

	w.debounce(set, publicKey)
}

// shouldIgnore filters out events inside staging directories and events for
// paths the provider itself just wrote.
func (w *watcher) shouldIgnore(ev fsnotify.Event) bool {
	rel, err := filepath.Rel(w.dataDir, ev.Name)
	if err != nil {
		return true
	}

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, "~") {
			return true
		}
	}

	if w.selfWrite.isSelfWrite(ev.Name, time.Now()) {
		return true
	}

	return false
}

// resolve maps an absolute event path back to its entity set and publicKey:
// for directory sets the second path component is the document's
// directory; for flat sets the top-level entry is itself the set's file.
func (w *watcher) resolve(path string) (set EntitySetDescriptor, publicKey string, ok bool) {
	rel, err := filepath.Rel(w.dataDir, path)
	if err != nil {
		return EntitySetDescriptor{}, "", false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) == 0 || parts[0] == "" {
		return EntitySetDescriptor{}, "", false
	}

	descriptor, found := w.schema.Set(parts[0])
	if !found {
		return EntitySetDescriptor{}, "", false
	}

	if descriptor.Mode == Flat {
		return descriptor, "", true
	}

	if len(parts) < 2 {
		return EntitySetDescriptor{}, "", false
	}

	return descriptor, parts[1], true
}

// debounce merges repeated events for the same set/document within
// watchDebounce into a single reconcile call.
func (w *watcher) debounce(set EntitySetDescriptor, publicKey string) {
	key := set.Name + "/" + publicKey

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[key]; ok {
		t.Stop()
	}

	w.timers[key] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := w.reconcile(ctx, set, publicKey); err != nil && w.logger != nil {
			w.logger.Warn("reconcile failed", "set", set.Name, "key", publicKey, "err", err)
		}
	})
}

func (w *watcher) Close() {
	close(w.stopped)
	<-w.done
	_ = w.fsw.Close()
}
