package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GroundAura/InventoryInjector/internal/util"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reports changes to rule files in a directory. Bursts of events are
// coalesced into a single notification.
type Watcher struct {
	dir      string
	logger   *util.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	changes  chan string
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, logger *util.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	abs = filepath.Clean(abs)
	if err := fw.Add(abs); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	return &Watcher{
		dir:      abs,
		logger:   logger,
		watcher:  fw,
		debounce: defaultDebounce,
		changes:  make(chan string, 1),
	}, nil
}

// Changes delivers a reason string after each settled burst of edits. A
// pending notification is never duplicated.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run pumps filesystem events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		last    string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Dir(filepath.Clean(event.Name)) != w.dir || !Supported(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			last = filepath.Base(event.Name)
			w.logger.Tracef("config event %s on %s", event.Op, last)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(w.debounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case w.changes <- fmt.Sprintf("%s changed", last):
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("config watcher error: %v", err)
		}
	}
}
