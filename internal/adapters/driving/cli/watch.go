package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/shokudev/kura/internal/core/services"
	"github.com/shokudev/kura/internal/logger"
)

// settleDelay gives the writer time to finish before the new file is
// read. Shortened in tests.
var settleDelay = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and ingest files dropped into it",
	Long: `Watches a drop directory and uploads every new file into the
knowledge base. The stale-document sweeper runs alongside so documents
stuck in processing are reclaimed. Stops on interrupt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	dir := settings.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no directory given and watch.dir is not configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := services.NewSweeper(ingestService, settings.SweepInterval(), settings.SweepThreshold())
	sweeper.Start(ctx)
	defer sweeper.Stop()

	cmd.Printf("watching %s\n", dir)
	watchLoop(ctx, cmd, watcher)
	if queueWait != nil {
		queueWait()
	}
	return nil
}

// watchLoop ingests files as they appear until the context is done or
// the watcher closes.
func watchLoop(ctx context.Context, cmd *cobra.Command, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			ingestDropped(ctx, cmd, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

// ingestDropped uploads one newly created file. Hidden files and
// directories are skipped.
func ingestDropped(ctx context.Context, cmd *cobra.Command, path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}

	// Let the writer finish before reading.
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		cmd.PrintErrf("skipping %s: %v\n", name, err)
		return
	}

	doc, err := ingestService.Upload(ctx, name, content)
	if err != nil {
		cmd.PrintErrf("skipping %s: %v\n", name, err)
		return
	}
	cmd.Printf("uploaded %s (id %s)\n", doc.OriginalFilename, doc.ID)
}
