package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/coordinator/internal/dag"
	"github.com/steveyegge/coordinator/internal/render"
	"github.com/steveyegge/coordinator/internal/storage/sqlite"
)

var compileOut string

var compileCmd = &cobra.Command{
	Use:   "compile <template.mdx>",
	Short: "Render a .mdx template against the repo's current issue snapshot",
	Long: `compile reads a template file (component tags like <Issues.Open/>,
<Stats/>, <Subtasks/>) and evaluates it against the repo's current issues
and dependency graph (spec §4.5), writing the rendered Markdown to --out
or stdout.

Reads local storage directly rather than going through the HTTP API: the
API's read surface (spec §6.2) exposes resolved ready/blocked/critical-path
queries but not the raw dependency edges render.Snapshot needs, and
compile is explicitly scoped as a local, offline operation that doesn't
require a running coordinatord.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileOut, "out", "", "output path (default: stdout)")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	templateBytes, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: read template: %v\n", err)
		os.Exit(exitCompileFail)
	}

	dbPath, _, _ := repoPaths(cfg, repo)
	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: open store: %v\n", err)
		os.Exit(exitUpstreamErr)
	}
	defer store.CloseStore()

	issues, edges, err := store.Snapshot(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: snapshot: %v\n", err)
		os.Exit(exitUpstreamErr)
	}

	snap := render.Snapshot{
		Issues: issues,
		Graph:  dag.NewSnapshot(issues, edges),
		Edges:  edges,
	}
	out := render.Render(string(templateBytes), snap, nil, nil)

	if compileOut == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(compileOut, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "syncctl: write output: %v\n", err)
		os.Exit(exitCompileFail)
	}
	return nil
}
