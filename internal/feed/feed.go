// Package feed watches a directory for HTML fragments and hands each new or
// changed file to a callback.
package feed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gitlab.com/tozd/go/errors"
)

// Feed delivers fragment files dropped into a directory.
type Feed struct {
	dir        string
	watcher    *fsnotify.Watcher
	onFragment func(path, markup string)
	seen       map[string]stamp
}

type stamp struct {
	size    int64
	modTime time.Time
}

// New starts watching dir. onFragment is called from Run's goroutine.
func New(dir string, onFragment func(path, markup string)) (*Feed, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, errors.Errorf("watching %s: %w", dir, err)
	}
	return &Feed{
		dir:        dir,
		watcher:    w,
		onFragment: onFragment,
		seen:       make(map[string]stamp),
	}, nil
}

// Run delivers events until ctx is done or the watcher fails.
func (f *Feed) Run(ctx context.Context) error {
	defer f.watcher.Close()
	log.Info().Str("dir", f.dir).Msg("watching feed directory")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			f.handleEvent(ev)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("feed watcher error")
		}
	}
}

// handleEvent reports whether the event produced a fragment.
func (f *Feed) handleEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			delete(f.seen, ev.Name)
		}
		return false
	}
	if !isFragment(ev.Name) {
		return false
	}

	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	st := stamp{size: info.Size(), modTime: info.ModTime()}
	if prev, ok := f.seen[ev.Name]; ok && prev == st {
		return false
	}

	data, err := os.ReadFile(ev.Name)
	if err != nil {
		log.Warn().Err(err).Str("path", ev.Name).Msg("read fragment")
		return false
	}
	if strings.TrimSpace(string(data)) == "" {
		return false
	}
	f.seen[ev.Name] = st

	log.Debug().Str("path", ev.Name).Int("bytes", len(data)).Msg("fragment received")
	f.onFragment(ev.Name, string(data))
	return true
}

func isFragment(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".html", ".htm":
		return true
	}
	return false
}
