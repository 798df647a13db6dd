package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/coordinator/internal/coordinator"
	"github.com/steveyegge/coordinator/internal/pattern"
	"github.com/steveyegge/coordinator/internal/storage/sqlite"
	syncpkg "github.com/steveyegge/coordinator/internal/sync"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch .todo/*.md in the foreground, applying each stable edit",
	Long: `watch runs the same debounced file-watch leg a coordinatord's
Coordinator runs (spec §4.3: 500ms debounce, 100ms stability window), but
in the foreground of this process rather than inside a long-lived daemon.
Exits on SIGINT/SIGTERM.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dbPath, filesRoot, _ := repoPaths(cfg, repo)

	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: open store: %v\n", err)
		os.Exit(exitUpstreamErr)
	}
	defer store.CloseStore()

	patSrc := cfg.Sync.FilePattern
	if patSrc == "" {
		patSrc = pattern.Default
	}
	pat, err := pattern.Compile(patSrc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: compile file pattern: %v\n", err)
		os.Exit(exitConfigErr)
	}
	fs := syncpkg.NewFileSync(filesRoot, pat)

	watcher, err := coordinator.NewFileWatcher(filesRoot, cfg.Sync.WatchDebounce, cfg.Sync.WatchStability, func(path string) {
		if _, _, _, err := fs.ApplyFileChange(ctx, store, path); err != nil {
			zlog.Warn("syncctl: file ingest failed", zap.String("path", path), zap.Error(err))
		} else {
			zlog.Info("syncctl: applied file change", zap.String("path", path))
		}
	}, zlog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: watch %s: %v\n", filesRoot, err)
		os.Exit(exitUpstreamErr)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		watcher.Run(stop)
		close(done)
	}()

	zlog.Info("syncctl: watching", zap.String("root", filesRoot))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	close(stop)
	<-done
	return watcher.Close()
}
