package engine

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// newWatcher watches the directory containing path (editors often replace
// files by rename) and reports debounced changes to path itself.
func newWatcher(ctx context.Context, path string) (<-chan EventType, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	events := make(chan EventType, 8)
	pending := make(chan EventType, 1)

	go func() {
		defer watcher.Close()
		defer close(events)

		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}

				typ := EventReloaded
				if event.Op&fsnotify.Remove != 0 {
					typ = EventRemoved
				}

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					// Latest change wins.
					select {
					case <-pending:
					default:
					}
					select {
					case pending <- typ:
					default:
					}
				})

			case typ := <-pending:
				select {
				case events <- typ:
				default:
					// Channel full, drop event
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}
