package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rhuss/lokal/pkg/debug"
)

// DefaultDebounce is the quiet period before changed files are ingested.
const DefaultDebounce = 250 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	// Debounce delays ingestion until no event arrived for this long.
	Debounce time.Duration

	// OnReport, when set, receives the outcome of every batch.
	OnReport func(*Report, error)
}

// Watch re-ingests selected files when they are created or written and
// forgets them when they are removed or renamed away. It blocks until ctx
// is done.
func (in *Ingester) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, in.opts.Root); err != nil {
		return err
	}
	slog.Info("watching for changes", "root", in.opts.Root)

	changed := make(map[string]bool)
	removed := make(map[string]bool)
	timer := time.NewTimer(opts.Debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if in.handleEvent(w, ev, changed, removed) {
				timer.Reset(opts.Debounce)
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", werr)

		case <-timer.C:
			report, err := in.flush(ctx, changed, removed)
			if opts.OnReport != nil {
				opts.OnReport(report, err)
			}
			if err != nil {
				slog.Error("re-ingestion failed", "error", err)
			}
			clear(changed)
			clear(removed)
		}
	}
}

// handleEvent records ev and reports whether a flush is needed.
func (in *Ingester) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event, changed, removed map[string]bool) bool {
	debug.Log("ingest", "watch event", "name", ev.Name, "op", ev.Op.String())

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addTree(w, ev.Name); err != nil {
				slog.Warn("watching new directory failed", "path", ev.Name, "error", err)
			}
			// Files may have been written before the watch was added.
			in.collect(ev.Name, changed, removed)
			return len(changed) > 0
		}
	}

	rel, ok := in.relative(ev.Name)
	if !ok || !in.Match(rel) {
		return false
	}
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		delete(changed, rel)
		removed[rel] = true
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		delete(removed, rel)
		changed[rel] = true
	default:
		return false
	}
	return true
}

// collect marks every selected file below dir as changed.
func (in *Ingester) collect(dir string, changed, removed map[string]bool) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := in.relative(p); ok && in.Match(rel) {
			delete(removed, rel)
			changed[rel] = true
		}
		return nil
	})
}

func (in *Ingester) flush(ctx context.Context, changed, removed map[string]bool) (*Report, error) {
	report := &Report{DocumentIDs: []string{}}
	for rel := range removed {
		report.Removed += in.Forget(ctx, rel)
	}
	if len(changed) == 0 {
		return report, nil
	}

	rels := make([]string, 0, len(changed))
	for rel := range changed {
		rels = append(rels, rel)
	}
	slices.Sort(rels)

	r, err := in.IngestFiles(ctx, rels)
	if r != nil {
		r.Removed += report.Removed
		report = r
	}
	return report, err
}

func (in *Ingester) relative(name string) (string, bool) {
	rel, err := filepath.Rel(in.opts.Root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addTree watches dir and its subdirectories, skipping hidden ones.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}
