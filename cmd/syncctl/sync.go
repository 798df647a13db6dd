package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/coordinator/internal/pattern"
	"github.com/steveyegge/coordinator/internal/storage/sqlite"
	syncpkg "github.com/steveyegge/coordinator/internal/sync"
	"github.com/steveyegge/coordinator/internal/upstream/beads"
	"github.com/steveyegge/coordinator/internal/upstream/linear"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass across every configured upstream axis",
	Long: `sync runs, once, the same work a live Coordinator's load() and
poll() do (spec §4.7): pull beads drift, poll Linear if configured, then
regenerate .todo/*.md from the merged result. It does not push to GitHub —
GitHub is written through on canonical mutation (spec §4.7.3), which only
a running coordinatord's HTTP API performs.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dbPath, filesRoot, beadsPath := repoPaths(cfg, repo)

	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: open store: %v\n", err)
		os.Exit(exitUpstreamErr)
	}
	defer store.CloseStore()

	bs := syncpkg.NewBeadsSync(beads.NewAdapter(beadsPath))
	applied, skipped, err := bs.IngestBeads(ctx, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: ingest beads: %v\n", err)
		os.Exit(exitUpstreamErr)
	}
	zlog.Info("syncctl: beads ingest", zap.Int("applied", applied), zap.Int("skipped", len(skipped)))

	if cfg.Linear.APIKey != "" {
		recon := syncpkg.New(store, zlog)
		ln := linear.NewClient(cfg.Linear.APIKey, cfg.Linear.TeamID)
		n, err := recon.Pull(ctx, ln)
		if err != nil {
			fmt.Fprintf(os.Stderr, "syncctl: linear poll: %v\n", err)
			os.Exit(exitUpstreamErr)
		}
		zlog.Info("syncctl: linear poll", zap.Int("applied", n))
	}

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
	written, err := syncpkg.RegenerateFiles(ctx, store, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: regenerate files: %v\n", err)
		os.Exit(exitUpstreamErr)
	}
	zlog.Info("syncctl: sync complete", zap.Int("files_written", len(written)))
	return nil
}
