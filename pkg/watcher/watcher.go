// Package watcher reports changes to the files a visualization is built from.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/sbom-sunburst/pkg/logging"
)

// ChangeType says what kind of input changed.
type ChangeType int

const (
	// ChangeTypeSBOM is a raw SBOM that has to go through the decomposition service again.
	ChangeTypeSBOM ChangeType = iota
	// ChangeTypeDecomposition is a saved decomposition that only has to be reloaded.
	ChangeTypeDecomposition
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeSBOM:
		return "sbom"
	case ChangeTypeDecomposition:
		return "decomposition"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// ChangeEvent is a batch of changes to files of one type.
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

const batchWindow = 100 * time.Millisecond

// FileWatcher watches individual files. It watches their directories rather
// than the files themselves so that editors replacing a file by rename are
// still noticed.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan ChangeEvent

	mu    sync.Mutex
	files map[string]ChangeType
}

// NewFileWatcher creates a watcher with nothing to watch.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan ChangeEvent, 16),
		files:   make(map[string]ChangeType),
	}, nil
}

// Add starts watching path. Changes to it are reported with the given type.
func (fw *FileWatcher) Add(path string, kind ChangeType) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	if err := fw.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	fw.mu.Lock()
	fw.files[abs] = kind
	fw.mu.Unlock()

	logging.Info("watching file", "path", abs, "type", kind)
	return nil
}

// Start processes file system events until ctx is cancelled, after which the
// Events channel is closed.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.processEvents(ctx)
}

// Events returns the channel of batched change events.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

func (fw *FileWatcher) kindOf(name string) (ChangeType, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return 0, false
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	kind, ok := fw.files[abs]
	return kind, ok
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	pending := make(map[ChangeType][]string)
	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, kind := range []ChangeType{ChangeTypeSBOM, ChangeTypeDecomposition} {
			paths := pending[kind]
			if len(paths) == 0 {
				continue
			}
			select {
			case fw.events <- ChangeEvent{Type: kind, Paths: paths, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			kind, ok := fw.kindOf(event.Name)
			if !ok {
				continue
			}
			logging.Trace("file changed", "path", event.Name, "op", event.Op.String())
			pending[kind] = append(pending[kind], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}
