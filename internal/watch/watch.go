// Package watch re-triggers chart rendering when input files change.
package watch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// Options selects the files to watch.
type Options struct {
	Files    []string      // Individual chart files
	Patterns []string      // doublestar globs; files created later are picked up too
	Debounce time.Duration // Quiet period before a change is reported
}

// Watcher reports content changes of chart files. Editors that save by
// rename are handled by watching parent directories rather than files.
type Watcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]bool
	patterns []string
	debounce time.Duration

	pendingMu sync.Mutex
	pending   map[string]time.Time // path -> last event

	// Content hashes, touched only by the Run goroutine.
	hashes map[string][sha256.Size]byte
}

// New sets up the watches. Files that cannot be read yet are still watched.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]bool),
		debounce: opts.Debounce,
		pending:  make(map[string]time.Time),
		hashes:   make(map[string][sha256.Size]byte),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	dirs := make(map[string]bool)
	for _, f := range opts.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
		w.seed(abs)
	}
	for _, p := range opts.Patterns {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		if !doublestar.ValidatePathPattern(abs) {
			fsw.Close()
			return nil, fmt.Errorf("bad pattern %q", p)
		}
		w.patterns = append(w.patterns, abs)
		base, _ := doublestar.SplitPattern(filepath.ToSlash(abs))
		if err := w.addTree(filepath.FromSlash(base), dirs); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		slog.Debug("watching directory", "path", dir)
	}
	return w, nil
}

// addTree collects base and its subdirectories, seeding hashes for files
// that already match.
func (w *Watcher) addTree(base string, dirs map[string]bool) error {
	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != base && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			dirs[path] = true
			return nil
		}
		if w.matches(path) {
			w.seed(path)
		}
		return nil
	})
}

func (w *Watcher) seed(path string) {
	if data, err := os.ReadFile(path); err == nil {
		w.hashes[path] = sha256.Sum256(data)
	}
}

func (w *Watcher) matches(path string) bool {
	if w.files[path] {
		return true
	}
	for _, p := range w.patterns {
		if ok, _ := doublestar.PathMatch(p, path); ok {
			return true
		}
	}
	return false
}

// Run delivers changed paths to onChange until ctx is cancelled. A path is
// reported once it has been quiet for the debounce period, and only when
// its content changed.
// Run closes the underlying watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	defer w.fsw.Close()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flush(ctx, onChange)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && len(w.patterns) > 0 {
			if err := w.fsw.Add(event.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !w.matches(event.Name) {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = time.Now()
	w.pendingMu.Unlock()
	slog.Debug("chart change detected", "path", event.Name, "op", event.Op.String())
}

func (w *Watcher) flush(ctx context.Context, onChange func(string)) {
	now := time.Now()
	var paths []string
	w.pendingMu.Lock()
	for p, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			paths = append(paths, p)
			delete(w.pending, p)
		}
	}
	w.pendingMu.Unlock()
	slices.Sort(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read changed chart", "path", path, "error", err)
			continue
		}
		sum := sha256.Sum256(data)
		if prev, ok := w.hashes[path]; ok && prev == sum {
			continue
		}
		w.hashes[path] = sum
		onChange(path)
	}
}
