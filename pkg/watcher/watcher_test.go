package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, ch <-chan ChangeEvent, timeout time.Duration) (ChangeEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(timeout):
		t.Fatal("timeout waiting for change event")
		return ChangeEvent{}, false
	}
}

func TestDebouncerMergesBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 30*time.Millisecond, time.Second)
	d.Start(context.Background())

	for range 5 {
		input <- ChangeEvent{Type: ChangeTypeDecomposition, Paths: []string{"/data/decomposition.json"}}
	}
	input <- ChangeEvent{Type: ChangeTypeSBOM, Paths: []string{"/data/bom.json"}}

	first, ok := next(t, d.Output(), time.Second)
	require.True(t, ok)
	assert.Equal(t, ChangeTypeSBOM, first.Type)

	second, ok := next(t, d.Output(), time.Second)
	require.True(t, ok)
	assert.Equal(t, ChangeTypeDecomposition, second.Type)
	assert.Equal(t, []string{"/data/decomposition.json"}, second.Paths)

	close(input)
	_, ok = next(t, d.Output(), time.Second)
	assert.False(t, ok)
}

func TestDebouncerMaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 200*time.Millisecond, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	stop := make(chan struct{})
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				input <- ChangeEvent{Type: ChangeTypeDecomposition, Paths: []string{"d.json"}}
			}
		}
	}()
	defer close(stop)

	// the quiet period never elapses while events keep coming
	ev, ok := next(t, d.Output(), 500*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, ChangeTypeDecomposition, ev.Type)
}

func TestDebouncerCancel(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeSBOM, Paths: []string{"bom.json"}}
	cancel()

	_, ok := next(t, d.Output(), time.Second)
	assert.False(t, ok, "pending batch is dropped on cancellation")
}

func TestAnalyzeChanges(t *testing.T) {
	sbom := AnalyzeChanges(ChangeEvent{Type: ChangeTypeSBOM, Paths: []string{"bom.json"}})
	assert.True(t, sbom.NeedDecompose)
	assert.True(t, sbom.NeedReload)
	assert.Equal(t, []string{"bom.json"}, sbom.ChangedFiles)

	saved := AnalyzeChanges(ChangeEvent{Type: ChangeTypeDecomposition})
	assert.False(t, saved.NeedDecompose)
	assert.True(t, saved.NeedReload)
}

func TestChangeTypeString(t *testing.T) {
	assert.Equal(t, "sbom", ChangeTypeSBOM.String())
	assert.Equal(t, "decomposition", ChangeTypeDecomposition.String())
	assert.Equal(t, "ChangeType(7)", ChangeType(7).String())
}

func TestFileWatcher(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "decomposition.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o644))

	fw, err := NewFileWatcher()
	require.NoError(t, err)
	require.NoError(t, fw.Add(target, ChangeTypeDecomposition))

	ctx, cancel := context.WithCancel(context.Background())
	fw.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte(`{"totalNodes":"1"}`), 0o644))

	ev, ok := next(t, fw.Events(), 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, ChangeTypeDecomposition, ev.Type)
	for _, p := range ev.Paths {
		assert.Equal(t, "decomposition.json", filepath.Base(p))
	}

	cancel()
	for {
		if _, ok := next(t, fw.Events(), 2*time.Second); !ok {
			break
		}
	}
}
