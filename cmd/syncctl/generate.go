package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/coordinator/internal/pattern"
	"github.com/steveyegge/coordinator/internal/storage"
	"github.com/steveyegge/coordinator/internal/storage/sqlite"
	syncpkg "github.com/steveyegge/coordinator/internal/sync"
	"github.com/steveyegge/coordinator/internal/upstream/beads"
	"github.com/steveyegge/coordinator/internal/upstream/github"
)

var generateSource string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate .todo/*.md files from one upstream source",
	Long: `generate ingests from --source into the repo's local store, then
regenerates one Markdown file per issue under sync.files_root (spec
§4.7.1's C4+C5 leg), the same emitter a running coordinatord uses.

  --source beads   read the beads.jsonl beside the files root directly
  --source github  list issues from the GitHub REST API (needs
                    COORDINATOR_GITHUB_TOKEN)
  --source api     pull the issue list from a running coordinatord's
                    HTTP API (--server)`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateSource, "source", "", "beads|github|api (required)")
	_ = generateCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dbPath, filesRoot, beadsPath := repoPaths(cfg, repo)

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

	switch generateSource {
	case "beads":
		bs := syncpkg.NewBeadsSync(beads.NewAdapter(beadsPath))
		if _, skipped, err := bs.IngestBeads(ctx, store); err != nil {
			fmt.Fprintf(os.Stderr, "syncctl: ingest beads: %v\n", err)
			os.Exit(exitUpstreamErr)
		} else if len(skipped) > 0 {
			zlog.Warn("syncctl: skipped malformed beads lines", zap.Int("count", len(skipped)))
		}
	case "github":
		if err := ingestGitHub(ctx, store); err != nil {
			fmt.Fprintf(os.Stderr, "syncctl: ingest github: %v\n", err)
			os.Exit(exitUpstreamErr)
		}
	case "api":
		if err := ingestFromServer(ctx, store); err != nil {
			fmt.Fprintf(os.Stderr, "syncctl: ingest from server: %v\n", err)
			os.Exit(exitUpstreamErr)
		}
	default:
		fmt.Fprintf(os.Stderr, "syncctl: unknown --source %q (want beads|github|api)\n", generateSource)
		os.Exit(exitConfigErr)
	}

	written, err := syncpkg.RegenerateFiles(ctx, store, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: regenerate files: %v\n", err)
		os.Exit(exitUpstreamErr)
	}
	zlog.Info("syncctl: generated files", zap.Int("count", len(written)), zap.String("source", generateSource))
	return nil
}

func ingestGitHub(ctx context.Context, store storage.Store) error {
	tok := os.Getenv("COORDINATOR_GITHUB_TOKEN")
	if tok == "" {
		return fmt.Errorf("COORDINATOR_GITHUB_TOKEN not set")
	}
	client := github.NewClient(ctx, tok, repo.Owner, repo.Name)
	issues, err := client.ListIssues(ctx, "all")
	if err != nil {
		return err
	}
	recon := syncpkg.New(store, zlog)
	for _, gi := range issues {
		if _, err := recon.IngestGitHubIssue(ctx, gi, ""); err != nil {
			return err
		}
	}
	return nil
}

func ingestFromServer(ctx context.Context, store storage.Store) error {
	list, err := fetchServerIssues(ctx)
	if err != nil {
		return err
	}
	for _, iss := range list {
		if _, err := store.Upsert(ctx, iss.toModel(), storage.Guard{}); err != nil {
			return err
		}
	}
	return nil
}
