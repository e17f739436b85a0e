package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// runWatch recompiles the input on every change until interrupted.
// The input's directory is watched rather than the file itself, since
// editors commonly replace files via rename.
func runWatch(opts *options) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(opts.inputFile)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target, err := filepath.Abs(opts.inputFile)
	if err != nil {
		target = opts.inputFile
	}

	fmt.Fprintf(os.Stderr, "Watching %s for changes...\n", opts.inputFile)
	compileAndReport(opts)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	var debounce *time.Timer
	recompile := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			changed, err := filepath.Abs(event.Name)
			if err != nil {
				changed = event.Name
			}
			if changed != target {
				continue
			}
			// Editors fire bursts of events per save; collapse them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case recompile <- struct{}{}:
				default:
				}
			})

		case <-recompile:
			compileAndReport(opts)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)

		case <-sigc:
			return nil
		}
	}
}

func compileAndReport(opts *options) {
	html, err := compileFile(opts)
	if err != nil {
		printError(err)
		return
	}
	if err := writeOutput(opts, html); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Compiled %s\n", opts.inputFile)
}
