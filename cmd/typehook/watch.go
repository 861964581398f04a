package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchFiles calls onChange with the original path of every watched file
// that is written or re-created, until ctx is done. Directories are watched
// rather than files so editors that replace files on save still trigger.
func watchFiles(ctx context.Context, paths []string, onChange func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	watched := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch: resolving %s: %w", p, err)
		}
		watched[abs] = p
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch: adding %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if orig, ok := watched[filepath.Clean(ev.Name)]; ok {
				onChange(orig)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	}
}
