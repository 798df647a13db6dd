// syncctl is the thin CLI collaborator of spec §6.3: it shares
// coordinatord's config and engine packages, but every invocation is a
// one-shot local process rather than a long-lived actor — there is no
// persistent state here beyond what a single command touches.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/coordinator/internal/config"
	"github.com/steveyegge/coordinator/internal/gitremote"
	"github.com/steveyegge/coordinator/internal/logging"
	"github.com/steveyegge/coordinator/internal/model"
)

// Exit codes per spec §6.3: 0 success, 1 compile failure, 2 configuration
// error, 3 upstream error.
const (
	exitOK          = 0
	exitCompileFail = 1
	exitConfigErr   = 2
	exitUpstreamErr = 3
)

var (
	flagConfig string
	flagOwner  string
	flagName   string
	flagServer string

	cfg  config.Config
	zlog *zap.Logger
	repo model.RepoContext
)

var rootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "Coordinator CLI: compile templates and drive one-shot sync passes",
	Long: `syncctl - Coordinator CLI

A thin command-line collaborator around the Coordinator daemon. It reads
the same coordinator.toml config and writes the same on-disk state a
running coordinatord would for this repo, but runs each command to
completion and exits rather than watching continuously.

Commands:
  compile    Render a .mdx template against the current issue snapshot
  generate   Regenerate .todo/*.md files from beads, GitHub, or a running coordinatord
  watch      Watch .todo/*.md in the foreground, syncing on change
  sync       Run one reconciliation pass across every configured upstream axis`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := config.Load(flagConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "syncctl: config: %v\n", err)
			os.Exit(exitConfigErr)
		}
		cfg = loadedCfg

		if flagOwner == "" {
			flagOwner = cfg.GitHub.Owner
		}
		if flagName == "" {
			flagName = cfg.GitHub.Repo
		}
		if flagOwner == "" || flagName == "" {
			if detOwner, detName, detErr := gitremote.DetectOwnerName(); detErr == nil {
				flagOwner, flagName = detOwner, detName
			}
		}
		if flagOwner == "" || flagName == "" {
			fmt.Fprintln(os.Stderr, "syncctl: --owner/--name required (or set github.owner/github.repo in config, or run inside a git checkout with a GitHub origin remote)")
			os.Exit(exitConfigErr)
		}
		repo = model.RepoContext{Owner: flagOwner, Name: flagName}

		zlog, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "syncctl: logging: %v\n", err)
			os.Exit(exitConfigErr)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to coordinator.toml")
	rootCmd.PersistentFlags().StringVar(&flagOwner, "owner", "", "repo owner (default: github.owner from config)")
	rootCmd.PersistentFlags().StringVar(&flagName, "name", "", "repo name (default: github.repo from config)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "coordinatord base URL, used by 'generate --source api'")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUpstreamErr)
	}
}

// repoPaths mirrors cmd/coordinatord's own per-repo scoping (base/owner/
// name) so syncctl reads and writes exactly the on-disk state a
// coordinatord attached to the same repo would.
func repoPaths(c config.Config, r model.RepoContext) (dbPath, filesRoot, beadsPath string) {
	dbPath = filepath.Join(c.Storage.DatabasePath, r.Owner, r.Name)
	filesRoot = filepath.Join(c.Sync.FilesRoot, r.Owner, r.Name)
	beadsPath = filepath.Join(filepath.Dir(filesRoot), "beads.jsonl")
	return
}
