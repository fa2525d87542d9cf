package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anvil-build/anvil/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	DB string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump every persisted rule record",
		Long: `Inspect opens a build database and lists every rule record it holds:
key, value, the iteration it was last built at, and its recorded
dependencies.

Example:
  anvil inspect --db ./build.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the build database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// inspectRow is the JSON-friendly shape of one rule record.
type inspectRow struct {
	Key          string   `json:"key"`
	Value        string   `json:"value"`
	BuiltAt      uint64   `json:"built_at"`
	ComputedAt   uint64   `json:"computed_at"`
	Dependencies []string `json:"dependencies,omitempty"`
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	db, err := store.OpenSQLiteDB(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open build database", err)
	}
	defer db.Close()

	records, err := db.ListRuleResults(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list rule records", err)
	}

	rows := make([]inspectRow, len(records))
	for i, r := range records {
		deps := make([]string, len(r.Dependencies))
		for j, d := range r.Dependencies {
			deps[j] = string(d)
		}
		rows[i] = inspectRow{
			Key:          string(r.Key),
			Value:        string(r.Value),
			BuiltAt:      r.BuiltAt,
			ComputedAt:   r.ComputedAt,
			Dependencies: deps,
		}
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tBUILT_AT\tCOMPUTED_AT\tDEPENDENCIES")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%v\n", r.Key, r.Value, r.BuiltAt, r.ComputedAt, r.Dependencies)
	}
	return w.Flush()
}
