package resources

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates cached schemas when files in the override directory
// change. It blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	c.logger.Info("watching schema overrides", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			t, ok := typeFromPath(ev.Name)
			if !ok {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				c.logger.Info("schema changed", "type", t, "op", ev.Op.String())
				c.Invalidate(t)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("schema watcher error", "error", err)
		}
	}
}

func typeFromPath(name string) (Type, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".yaml") {
		return "", false
	}
	return Type(strings.TrimSuffix(base, ".yaml")), true
}
