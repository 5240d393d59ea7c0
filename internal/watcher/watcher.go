// Package watcher ingests files dropped into inbox directories. Create and
// write events are debounced per path and handed to IngestFile; removed files
// are deleted by their file document id.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/fileid"
	"github.com/hyperjump/tansaku/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Handler receives the watcher's work. *indexer.Indexer satisfies it.
type Handler interface {
	IngestFile(ctx context.Context, path string) (*models.IngestReport, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Watcher watches inbox roots and feeds file changes to a Handler.
type Watcher struct {
	handler    Handler
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	roots    []string
	watched  map[string][]string // root -> directories registered with fsnotify
	pending  map[string]*time.Timer
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the quiet period before a changed file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher for the directories, extensions and recursion set in cfg.
// An empty extension list accepts every file.
func New(cfg config.WatchConfig, h Handler, opts ...Option) *Watcher {
	w := &Watcher{
		handler:    h,
		extensions: cfg.Extensions,
		recursive:  cfg.RecursiveOrDefault(),
		debounce:   cfg.Debounce,
		logger:     zap.NewNop(),
		watched:    make(map[string][]string),
		pending:    make(map[string]*time.Timer),
	}
	for _, root := range cfg.Directories {
		if abs, err := filepath.Abs(root); err == nil {
			w.roots = append(w.roots, filepath.Clean(abs))
		}
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start registers the roots, creating missing ones, and processes events
// until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return err
		}
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.logger.Info("watcher started",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	go w.run(w.ctx, fsw.Events, fsw.Errors)
	return nil
}

func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if matchExtension(path, w.extensions) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if matchExtension(path, w.extensions) {
			w.spawn(func(ctx context.Context) { w.remove(ctx, path) })
		}
	}
}

// handleNewDirectory watches a directory created or moved under a root and
// ingests the files already inside it.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if !w.recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(p); err != nil {
				w.logger.Warn("watcher failed to add directory", zap.String("path", p), zap.Error(err))
			}
		}
		return nil
	})
	w.spawn(func(ctx context.Context) { w.syncDirectory(ctx, dir) })
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.roots {
		if inDir(root, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// schedule ingests path once no event for it arrived for the debounce period.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.spawn(func(ctx context.Context) { w.ingest(ctx, path) })
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// spawn runs fn while the watcher is active. Stop waits for it.
func (w *Watcher) spawn(fn func(context.Context)) {
	w.mu.Lock()
	ctx := w.ctx
	if w.fsw == nil || ctx == nil {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	go func() {
		defer w.inflight.Done()
		fn(ctx)
	}()
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	report, err := w.handler.IngestFile(ctx, path)
	switch {
	case err != nil:
		w.logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
	case report.Skipped:
		w.logger.Debug("watch ingest skipped, file unchanged", zap.String("path", path))
	default:
		w.logger.Info("watch ingested file",
			zap.String("path", path),
			zap.String("document_id", report.DocumentID),
			zap.String("status", string(report.Status)),
			zap.Int("persisted", len(report.PersistedChunkIDs)),
			zap.Int("failed", len(report.FailedChunks)))
	}
}

func (w *Watcher) remove(ctx context.Context, path string) {
	id := fileid.FromAbs(path)
	err := w.handler.DeleteDocument(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		w.logger.Debug("watch delete: document not indexed", zap.String("path", path))
	case err != nil:
		w.logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
	default:
		w.logger.Info("watch deleted document", zap.String("path", path), zap.String("document_id", id))
	}
}

// AddDirectory starts watching root and, when syncExisting is set, ingests
// the files already in it in the background.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return errors.New("watcher not started")
	}
	for _, r := range w.roots {
		if r == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		w.mu.Unlock()
		return err
	}
	w.roots = append(w.roots, abs)
	w.mu.Unlock()
	w.logger.Info("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		w.spawn(func(ctx context.Context) { w.syncDirectory(ctx, abs) })
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var dirs []string
	if !w.recursive {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		w.watched[root] = []string{root}
		return nil
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if err := w.fsw.Add(p); err != nil {
			return err
		}
		dirs = append(dirs, p)
		return nil
	})
	if err != nil {
		return err
	}
	w.watched[root] = dirs
	return nil
}

func (w *Watcher) syncDirectory(ctx context.Context, root string) {
	w.logger.Debug("watcher syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(p, w.extensions) {
			w.ingest(ctx, p)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Documents already ingested from it stay.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range w.roots {
		if r != abs {
			continue
		}
		if w.fsw != nil {
			for _, d := range w.watched[abs] {
				_ = w.fsw.Remove(d)
			}
		}
		delete(w.watched, abs)
		w.roots = append(w.roots[:i], w.roots[i+1:]...)
		w.logger.Info("watcher directory removed", zap.String("path", abs))
		return nil
	}
	return nil
}

// Directories returns a copy of the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExisting ingests every matching file already present under the roots.
// It blocks until done; unchanged files are skipped by the handler.
func (w *Watcher) SyncExisting(ctx context.Context) {
	for _, root := range w.Directories() {
		w.syncDirectory(ctx, root)
	}
}

// SyncInBackground runs SyncExisting on a goroutine that Stop waits for.
func (w *Watcher) SyncInBackground() {
	w.spawn(w.SyncExisting)
}

// Stop closes the watcher, drops pending debounced files and waits for
// running ingests to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.cancel()
	w.mu.Unlock()
	w.inflight.Wait()
}
