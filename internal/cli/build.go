package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anvil-build/anvil/internal/core"
	"github.com/anvil-build/anvil/internal/harness"
	"github.com/anvil-build/anvil/internal/rulespec"
	"github.com/anvil-build/anvil/internal/store"
)

// schemaVersion is the on-disk schema version anvil's store expects.
// Bump it whenever the persisted row shape changes.
const schemaVersion = 1

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Graph string
	DB    string
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <key>",
		Short: "Build a key from a rule graph",
		Long: `Build loads a declarative rule graph, attaches a persistent build
database, and computes the requested key, rerunning only the rules a
change actually affects.

Example:
  anvil build message --graph ./graph.yaml --db ./build.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Graph, "graph", "", "path to a rule graph YAML file (defaults to anvil.yaml's graph:)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the build database (defaults to anvil.yaml's db:)")

	return cmd
}

func runBuild(opts *BuildOptions, key string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	runID := uuid.New()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	cfg, err := LoadConfig("anvil.yaml")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read anvil.yaml", err)
	}
	opts.Graph = applyDefault(opts.Graph, cfg.Graph)
	opts.DB = applyDefault(opts.DB, cfg.DB)
	if opts.Graph == "" {
		return NewExitError(ExitCommandError, "no graph file given: pass --graph or set graph: in anvil.yaml")
	}
	if opts.DB == "" {
		return NewExitError(ExitCommandError, "no database path given: pass --db or set db: in anvil.yaml")
	}

	graphData, err := os.ReadFile(opts.Graph)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read graph file", err)
	}

	cat, err := rulespec.NewCatalogue(graphData)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rule graph", err)
	}

	slog.Info("opening build database", "run", runID, "path", opts.DB)
	db, err := store.OpenSQLiteDB(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open build database", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing build database", "run", runID, "error", closeErr)
		}
	}()

	rec := harness.NewRecorder()
	traced := harness.Trace(cat.Rules(), rec)

	eng := core.New(cat)
	defer eng.Close()
	if err := eng.AttachDB(cmd.Context(), db, schemaVersion, true); err != nil {
		return WrapExitError(ExitCommandError, "failed to attach build database", err)
	}
	for _, rule := range traced {
		if err := eng.AddRule(rule); err != nil {
			return WrapExitError(ExitCommandError, "failed to register rule graph", err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	slog.Info("build starting", "run", runID, "key", key)
	value, buildErr := eng.Build(ctx, core.Key(key))
	if buildErr != nil {
		_ = formatter.Failure("BUILD_FAILED", buildErr.Error())
		return WrapExitError(ExitFailure, "build failed", buildErr)
	}

	ran := countByType(rec.Events(), "create_task")
	summary := fmt.Sprintf("built %q: %d %s evaluated, value %q", key, ran, pluralRules(ran), value)

	return formatter.Success(summary)
}

func countByType(events []harness.TraceEvent, typ string) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func pluralRules(n int) string {
	if n == 1 {
		return "rule"
	}
	return "rules"
}
