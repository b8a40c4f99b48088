// Package watcher observes source trees with fsnotify and dispatches
// debounced change batches to rules. Each rule pairs a path filter with a
// handler, typically a compile task or a browser reload.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// FileWatcher watches directory trees and feeds change batches to rules.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	rules     []Rule
	logger    logging.Logger
	mutex     sync.RWMutex

	handlers  sync.WaitGroup
	stopOnce  sync.Once
	startOnce sync.Once
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles a batch of matching events
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// Rule routes the events its Filter accepts to Handler.
type Rule struct {
	Name    string
	Filter  FileFilter
	Handler ChangeHandler
}

// Options configures a FileWatcher.
type Options struct {
	// Debounce coalesces events by path within the window. Zero dispatches
	// every event on its own.
	Debounce time.Duration
	Logger   logging.Logger
}

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
	logger  logging.Logger
}

// New creates a file watcher. Filters and rules are added before Start.
func New(opts Options) (*FileWatcher, error) {
	if opts.Debounce < 0 {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "debounce must not be negative")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeWatcherFailed, "failed to create file watcher", "")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	logger = logger.WithComponent("watcher")
	return &FileWatcher{
		watcher: w,
		debouncer: &Debouncer{
			delay:   opts.Debounce,
			events:  make(chan ChangeEvent, 256),
			output:  make(chan []ChangeEvent, 64),
			pending: make([]ChangeEvent, 0),
			logger:  logger,
		},
		logger: logger,
	}, nil
}

// AddFilter adds a filter every event must pass before rules see it
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddRule registers a rule. A nil Filter accepts everything.
func (fw *FileWatcher) AddRule(rule Rule) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.rules = append(fw.rules, rule)
}

// AddRecursive adds a directory and all subdirectories to watch. A missing
// root is skipped.
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot := filepath.Clean(root)

	info, err := os.Stat(cleanRoot)
	if os.IsNotExist(err) {
		fw.logger.Debug(context.Background(), "Skipping missing watch root", "path", cleanRoot)
		return nil
	}
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeWatcherFailed, "failed to stat watch root", cleanRoot)
	}
	if !info.IsDir() {
		return errors.NewConfigError(errors.ErrCodeInvalidPath, fmt.Sprintf("watch root %s is not a directory", cleanRoot))
	}

	return filepath.WalkDir(cleanRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish between listing and adding
			if os.IsNotExist(err) {
				return nil
			}
			return errors.WrapIO(err, errors.ErrCodeWatcherFailed, "failed to walk watch root", path)
		}
		if !d.IsDir() {
			return nil
		}
		if path != cleanRoot && !fw.accepts(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return errors.WrapIO(err, errors.ErrCodeWatcherFailed, "failed to watch directory", path)
		}
		return nil
	})
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.startOnce.Do(func() {
		go fw.debouncer.start(ctx)
		go fw.processEvents(ctx)
		go fw.watchLoop(ctx)
	})
	return nil
}

// Stop closes the fsnotify watcher and waits for running handlers.
// Callers cancel the Start context first so the loops exit.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.debouncer.stop()
		err = fw.watcher.Close()
		fw.handlers.Wait()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) accepts(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || !fw.accepts(event.Name) {
		return
	}

	info, err := os.Stat(event.Name)
	var modTime time.Time
	var size int64

	if err == nil {
		modTime = info.ModTime()
		size = info.Size()

		// New directories are watched too, so files created inside them fire.
		if info.IsDir() {
			if event.Op&fsnotify.Create == fsnotify.Create {
				if err := fw.AddRecursive(event.Name); err != nil {
					fw.logger.Warn(ctx, err, "Failed to watch new directory", "path", event.Name)
				}
			}
			return
		}
	}

	// Convert to our event type
	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	changeEvent := ChangeEvent{
		Type:    eventType,
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	}

	if fw.debouncer.delay == 0 {
		select {
		case fw.debouncer.output <- []ChangeEvent{changeEvent}:
		case <-ctx.Done():
		}
		return
	}

	select {
	case fw.debouncer.events <- changeEvent:
	default:
		fw.logger.Warn(ctx, nil, "Dropped file event, queue full", "path", event.Name)
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.dispatch(ctx, events)
		}
	}
}

// dispatch hands each rule the events it accepts. Rules run concurrently
// and independently; a failing handler is logged and watching goes on.
func (fw *FileWatcher) dispatch(ctx context.Context, events []ChangeEvent) {
	fw.mutex.RLock()
	rules := fw.rules
	fw.mutex.RUnlock()

	for _, rule := range rules {
		matched := make([]ChangeEvent, 0, len(events))
		for _, event := range events {
			if rule.Filter == nil || rule.Filter(event.Path) {
				matched = append(matched, event)
			}
		}
		if len(matched) == 0 {
			continue
		}

		fw.handlers.Add(1)
		go func(rule Rule, matched []ChangeEvent) {
			defer fw.handlers.Done()
			fw.logger.Debug(ctx, "Changes detected", "rule", rule.Name, "files", len(matched))
			if err := rule.Handler(ctx, matched); err != nil {
				fw.logger.Error(ctx, err, "Watch handler failed", "rule", rule.Name)
			}
		}(rule, matched)
	}
}

// Debouncer implementation
func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Add event to pending list
	d.pending = append(d.pending, event)

	// Reset timer
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.flush()
	})
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = d.pending[:0]
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	events := coalesce(d.pending)

	// Send debounced events
	select {
	case d.output <- events:
	default:
		d.logger.Warn(context.Background(), nil, "Dropped change batch, queue full",
			"files", len(events), "paths", Paths(events))
	}

	// Clear pending events
	d.pending = d.pending[:0]
}

// coalesce keeps the latest event per path, ordered by path.
func coalesce(pending []ChangeEvent) []ChangeEvent {
	eventMap := make(map[string]ChangeEvent, len(pending))
	for _, event := range pending {
		eventMap[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// Paths returns the event paths in order.
func Paths(events []ChangeEvent) []string {
	paths := make([]string, 0, len(events))
	for _, e := range events {
		paths = append(paths, e.Path)
	}
	return paths
}

// Common file filters

// NoGitFilter rejects anything inside a .git directory.
func NoGitFilter(path string) bool {
	p := filepath.ToSlash(path)
	return !strings.HasPrefix(p, ".git/") && !strings.Contains(p, "/.git/") && filepath.Base(path) != ".git"
}

// NoEditorFilter rejects editor swap and backup files.
func NoEditorFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"),
		base == ".DS_Store":
		return false
	}
	return true
}
