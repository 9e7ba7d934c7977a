package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, w *Watcher) <-chan string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan string, 16)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(p string) { changes <- p }) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return changes
}

func expect(t *testing.T, changes <-chan string, want string) {
	t.Helper()
	select {
	case got := <-changes:
		assert.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("no change reported for %s", want)
	}
}

func drain(changes <-chan string, quiet time.Duration) {
	for {
		select {
		case <-changes:
		case <-time.After(quiet):
			return
		}
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	chart := filepath.Join(dir, "chart.json")
	require.NoError(t, os.WriteFile(chart, []byte(`{}`), 0644))

	w, err := New(Options{Files: []string{chart}, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	changes := run(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(chart, []byte(`{"gateActivations":{"1":"design"}}`), 0644))
	expect(t, changes, chart)
	drain(changes, 100*time.Millisecond)

	// Rewriting identical content is not a change.
	require.NoError(t, os.WriteFile(chart, []byte(`{"gateActivations":{"1":"design"}}`), 0644))
	select {
	case p := <-changes:
		t.Fatalf("unexpected change for %s", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchPattern(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "clients")
	require.NoError(t, os.MkdirAll(sub, 0755))

	w, err := New(Options{Patterns: []string{filepath.Join(dir, "**", "*.json")}, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	changes := run(t, w)

	created := filepath.Join(sub, "new.json")
	require.NoError(t, os.WriteFile(created, []byte(`{}`), 0644))
	expect(t, changes, created)
}

func TestNewBadPattern(t *testing.T) {
	_, err := New(Options{Patterns: []string{"charts/[.json"}})
	assert.Error(t, err)
}
