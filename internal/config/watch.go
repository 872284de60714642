package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodex/custodex/internal/logging"
	"github.com/custodex/custodex/internal/util"
)

// debounce absorbs the bursts of write events editors produce when
// saving a file.
const debounce = 250 * time.Millisecond

// Watch reloads the config file on change and passes each valid reload
// to onReload. Invalid edits are logged and skipped, keeping the last
// good configuration active. The returned channel closes when the
// watcher stops.
func Watch(ctx context.Context, path string, onReload func(*Config)) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path = expandPath(path)
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	util.SafeGoWithName("config-watch", func() {
		defer close(done)
		defer watcher.Close()

		var timer *time.Timer
		var timerC <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
					timerC = timer.C
				} else {
					timer.Reset(debounce)
				}

			case <-timerC:
				cfg, err := Load(path)
				if err != nil {
					logging.Warn("config reload rejected", logging.Err(err))
					continue
				}
				logging.Info("configuration reloaded", "path", path)
				onReload(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("config watcher error", logging.Err(err))
			}
		}
	})
	return done, nil
}
