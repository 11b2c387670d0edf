package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/preflightci/preflight/pkg/console"
	"github.com/preflightci/preflight/pkg/constants"
	"github.com/preflightci/preflight/pkg/fileutil"
	"github.com/preflightci/preflight/pkg/logger"
)

var watchLog = logger.New("cli:watch")

// runWatch validates immediately, then re-validates whenever the target
// changes, until interrupted. Each pass gets its own ephemeral environment
// and teardown; watch mode never accumulates state between passes.
func runWatch(parent context.Context, cfg ValidateConfig) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		console.PrintError(fmt.Errorf("failed to start watcher: %w", err))
		return &ExitError{Code: constants.ExitRunError}
	}
	defer watcher.Close()

	// Watching the parent directory catches editors that replace files
	// instead of writing in place.
	watchPath := cfg.Target
	if fileutil.FileExists(cfg.Target) {
		watchPath = filepath.Dir(cfg.Target)
	}
	if err := watcher.Add(watchPath); err != nil {
		console.PrintError(fmt.Errorf("failed to watch %s: %w", watchPath, err))
		return &ExitError{Code: constants.ExitRunError}
	}

	runPass := func() {
		result, err := RunValidation(ctx, cfg)
		if err != nil {
			console.PrintError(err)
			return
		}
		if err := printReport(result, cfg); err != nil {
			console.PrintError(err)
		}
	}

	runPass()
	fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Watching "+watchPath+" for changes (Ctrl-C to stop)"))

	rerun := make(chan struct{}, 1)
	debounce := newDebouncer(constants.WatchDebounce, func() {
		select {
		case rerun <- struct{}{}:
		default:
		}
	})
	defer debounce.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			watchLog.Printf("event: %s", event)
			debounce.trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage("watch error: "+err.Error()))
		case <-rerun:
			fmt.Fprintln(os.Stderr, "")
			runPass()
		}
	}
}

// debouncer coalesces trigger bursts: fire runs once per quiet period of at
// least the configured delay since the last trigger.
type debouncer struct {
	delay time.Duration
	fire  func()

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(delay time.Duration, fire func()) *debouncer {
	return &debouncer{delay: delay, fire: fire}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
