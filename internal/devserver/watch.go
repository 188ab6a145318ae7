package devserver

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// watchFixtures reloads the fixture file whenever it changes. The parent
// directory is watched so editors that replace the file on save are seen.
func (s *Server) watchFixtures(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target, err := filepath.Abs(s.opts.Fixtures)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch fixtures: %w", err)
	}
	s.logger.Info("watching fixtures", "file", target)

	// Reloads run on this goroutine; none outlives it.
	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != target {
				continue
			}
			debounce.Reset(reloadDebounce)

		case <-debounce.C:
			s.reloadFixtures(ctx, target)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Server) reloadFixtures(ctx context.Context, target string) {
	s.logger.Debug("fixtures changed, reloading", "file", target)
	if err := s.Reload(ctx); err != nil {
		s.metrics.reloads.WithLabelValues("error").Inc()
		s.logger.Error("fixture reload failed", "error", err)
		return
	}
	s.metrics.reloads.WithLabelValues("ok").Inc()
}
