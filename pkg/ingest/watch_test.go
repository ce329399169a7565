package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngester_Watch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "Existing document.")
	store := newStore()
	in, err := New(store, Options{Root: root})
	require.NoError(t, err)
	_, err = in.Run(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reports := make(chan *Report, 16)
	done := make(chan error, 1)
	go func() {
		done <- in.Watch(ctx, WatchOptions{
			Debounce: 20 * time.Millisecond,
			OnReport: func(r *Report, err error) {
				assert.NoError(t, err)
				select {
				case reports <- r:
				default:
				}
			},
		})
	}()

	// Give the watcher time to register the tree.
	time.Sleep(100 * time.Millisecond)

	writeFile(t, root, "b.md", "Added while watching.")
	writeFile(t, root, "ignored.go", "package x")
	require.Eventually(t, func() bool { return store.Len() == 2 }, 5*time.Second, 20*time.Millisecond)

	writeFile(t, root, "sub/c.md", "Nested document.")
	require.Eventually(t, func() bool { return store.Len() == 3 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "a.md")))
	require.Eventually(t, func() bool { return store.Len() == 2 }, 5*time.Second, 20*time.Millisecond)

	for _, d := range store.List() {
		assert.NotEqual(t, "a.md", d.Metadata[MetaSource])
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancellation")
	}
	assert.NotEmpty(t, reports)
}
