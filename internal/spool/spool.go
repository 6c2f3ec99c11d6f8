// Package spool ingests task definition files from a watched
// directory. Dropping a YAML file into the spool submits a task to the
// engine; processed files are moved aside so a restart does not
// resubmit them.
package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"

	"github.com/dispatchd/dispatch/pkg/models"
)

// Handler receives each task parsed from the spool. Returning an
// error leaves the file in place for inspection.
type Handler func(*models.Task) error

// taskFile is the on-disk YAML shape of a spooled task.
type taskFile struct {
	ID                   string   `yaml:"id"`
	Title                string   `yaml:"title"`
	Description          string   `yaml:"description"`
	Priority             string   `yaml:"priority"`
	RequiredCapabilities []string `yaml:"required_capabilities"`
	DependsOn            []string `yaml:"depends_on"`
	Prefers              []string `yaml:"prefers"`
	ConflictsWith        []string `yaml:"conflicts_with"`
}

// Watcher monitors a spool directory and hands parsed tasks to a
// handler.
type Watcher struct {
	dir     string
	handler Handler

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the given spool directory,
// creating the directory and its done/ subdirectory if needed.
func NewWatcher(dir string, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("spool: nil handler")
	}
	for _, d := range []string{dir, filepath.Join(dir, "done")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create spool directory: %w", err)
		}
	}
	return &Watcher{
		dir:     dir,
		handler: handler,
		done:    make(chan struct{}),
	}, nil
}

// Dir returns the watched spool directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// LoadDir processes every task file already present in the spool,
// in name order. It returns the number of tasks handed off.
func (w *Watcher) LoadDir() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("read spool directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isTaskFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	count := 0
	for _, name := range names {
		if err := w.process(filepath.Join(w.dir, name)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Start begins watching the spool directory for new task files.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.watch(watcher)
	return nil
}

// watch consumes filesystem events until Stop is called. The watcher
// is passed in rather than read from the struct so Stop can tear the
// field down without racing this goroutine.
func (w *Watcher) watch(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isTaskFile(filepath.Base(event.Name)) {
				continue
			}
			// Best effort: a malformed or half-written file stays in
			// the spool and is retried on the next write event.
			w.process(event.Name)
		case <-watcher.Errors:
			// Keep watching
		}
	}
}

// process parses one task file, hands it off, and archives it.
func (w *Watcher) process(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already archived by an earlier event for the same file.
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	task, err := ParseTask(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if err := w.handler(task); err != nil {
		return fmt.Errorf("submit %s: %w", path, err)
	}

	dest := filepath.Join(w.dir, "done", filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.done)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
}

// ParseTask decodes a spooled task definition. Priority defaults to
// normal when omitted.
func ParseTask(data []byte) (*models.Task, error) {
	var tf taskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if strings.TrimSpace(tf.Title) == "" {
		return nil, fmt.Errorf("task has no title")
	}

	priority := models.PriorityNormal
	if tf.Priority != "" {
		priority = models.Priority(tf.Priority)
		if !priority.Valid() {
			return nil, fmt.Errorf("unknown priority %q", tf.Priority)
		}
	}

	return &models.Task{
		ID:                   tf.ID,
		Title:                tf.Title,
		Description:          tf.Description,
		Priority:             priority,
		RequiredCapabilities: tf.RequiredCapabilities,
		DependsOn:            tf.DependsOn,
		Prefers:              tf.Prefers,
		ConflictsWith:        tf.ConflictsWith,
	}, nil
}

func isTaskFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
