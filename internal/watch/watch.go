// Package watch emits change events for bibliography files under a root
// directory. Raw filesystem notifications are debounced and deduplicated
// by content digest, so editors that write in multiple steps produce a
// single event and touch-without-change produces none. Changed files are
// reparsed before the event is emitted; consumers receive either the new
// bibliography or the parse error.
package watch

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/CedarBib/core/bibtex"
	"github.com/FocuswithJustin/CedarBib/internal/logging"
)

// eventBuffer is the capacity of the outgoing event channel. Events are
// dropped, not blocked on, when the consumer falls behind.
const eventBuffer = 256

// DefaultDebounce is the flush interval used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Op is the kind of change an Event reports.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Event is a debounced change to one bibliography file.
type Event struct {
	// Path is relative to the watched root, slash-separated.
	Path string

	// AbsPath is the absolute filesystem path.
	AbsPath string

	// Op is the change kind after debouncing.
	Op Op

	// Digest is the BLAKE3 digest of the new content. Empty for deletes.
	Digest string

	// Bib is the reparsed bibliography for creates and modifies. Nil when
	// Err is set or the file was deleted.
	Bib *bibtex.Bibliography

	// Err is the parse error for the new content, if any.
	Err error
}

// Config controls which files produce events.
type Config struct {
	// Patterns are doublestar globs matched against the slash-separated
	// path relative to the root. Empty means **/*.bib plus the
	// compressed variants.
	Patterns []string

	// Debounce is how long to collect raw notifications before emitting
	// events. Zero means DefaultDebounce.
	Debounce time.Duration

	// ExcludeDirs are directory basenames that are never descended into.
	// Empty means .git alone. Hidden directories are always skipped.
	ExcludeDirs []string

	// ParseOptions are applied when reparsing changed files.
	ParseOptions bibtex.ParseOptions
}

func (c Config) patterns() []string {
	if len(c.Patterns) == 0 {
		return []string{"**/*.bib", "**/*.bib.gz", "**/*.bib.xz"}
	}
	return c.Patterns
}

func (c Config) debounce() time.Duration {
	if c.Debounce <= 0 {
		return DefaultDebounce
	}
	return c.Debounce
}

// Watcher watches a directory tree for bibliography file changes.
type Watcher struct {
	root      string
	patterns  []string
	debounce  time.Duration
	excludes  map[string]bool
	parseOpts bibtex.ParseOptions
	fsw       *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	digestMu sync.RWMutex
	digests  map[string]string

	events  chan Event
	dropped atomic.Int64
}

// New creates a watcher for the tree rooted at root. Call Start to begin
// receiving events.
func New(root string, cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	excludes := make(map[string]bool)
	if len(cfg.ExcludeDirs) == 0 {
		excludes[".git"] = true
	} else {
		for _, dir := range cfg.ExcludeDirs {
			excludes[dir] = true
		}
	}

	return &Watcher{
		root:      root,
		patterns:  cfg.patterns(),
		debounce:  cfg.debounce(),
		excludes:  excludes,
		parseOpts: cfg.ParseOptions,
		fsw:       fsw,
		pending:   make(map[string]fsnotify.Op),
		digests:   make(map[string]string),
		events:    make(chan Event, eventBuffer),
	}, nil
}

// Events returns the channel of debounced change events. The channel is
// closed when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start adds watches for the root and its subdirectories and begins the
// processing loop. The loop exits when ctx is cancelled or the watcher
// is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.run(ctx)
	logging.Info("file watcher started",
		"root", w.root,
		"patterns", strings.Join(w.patterns, ","),
		"debounce", w.debounce)
	return nil
}

// Stop closes the underlying filesystem watcher. The events channel is
// closed once the processing loop drains.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

// SetDigest primes the digest cache, marking path (relative to the root)
// as already seen with the given content digest. Changes that produce the
// same digest are suppressed.
func (w *Watcher) SetDigest(path, digest string) {
	w.digestMu.Lock()
	defer w.digestMu.Unlock()
	w.digests[path] = digest
}

// GetDigest returns the cached digest for path.
func (w *Watcher) GetDigest(path string) (string, bool) {
	w.digestMu.RLock()
	defer w.digestMu.RUnlock()
	digest, ok := w.digests[path]
	return digest, ok
}

// Dropped returns how many events were discarded because the event
// channel was full.
func (w *Watcher) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && (w.excludes[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			logging.Warn("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.collect(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// collect records a raw notification for the next flush.
func (w *Watcher) collect(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if !w.matches(rel) {
		// New directories need their own watch.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				w.watchNewDir(event.Name)
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = event.Op
	w.pendingMu.Unlock()
	logging.Debug("change collected", "path", rel, "op", event.Op.String())
}

func (w *Watcher) matches(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if w.excludes[part] {
			return false
		}
	}
	for _, pattern := range w.patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) watchNewDir(path string) {
	base := filepath.Base(path)
	if w.excludes[base] || strings.HasPrefix(base, ".") {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		logging.Warn("cannot watch new directory", "path", path, "error", err)
	}
}

// flush turns the collected notifications into events, dropping changes
// whose content digest is unchanged.
func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range batch {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		event := Event{Path: rel, AbsPath: path}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			event.Op = OpDelete
			w.forget(rel)
			w.send(event)
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			event.Op = OpDelete
			w.forget(rel)
			w.send(event)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			logging.Warn("cannot read changed file", "path", rel, "error", err)
			continue
		}
		sum := blake3.Sum256(content)
		digest := hex.EncodeToString(sum[:])

		previous, seen := w.GetDigest(rel)
		if seen && previous == digest {
			continue
		}
		w.SetDigest(rel, digest)

		event.Digest = digest
		if op.Has(fsnotify.Create) || !seen {
			event.Op = OpCreate
		} else {
			event.Op = OpModify
		}
		event.Bib, event.Err = bibtex.Open(path, w.parseOpts)
		if event.Err != nil {
			logging.Warn("changed file does not parse", "path", rel, "error", event.Err)
		}
		w.send(event)
	}
}

func (w *Watcher) forget(rel string) {
	w.digestMu.Lock()
	defer w.digestMu.Unlock()
	delete(w.digests, rel)
}

func (w *Watcher) send(event Event) {
	select {
	case w.events <- event:
		logging.WatchEvent(string(event.Op), event.Path)
	default:
		dropped := w.dropped.Add(1)
		logging.Warn("event channel full, dropping event",
			"path", event.Path, "total_dropped", dropped)
	}
}
