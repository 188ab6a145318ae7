package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapadmin/internal/browser"
	"github.com/leapstack-labs/leapadmin/internal/cli/output"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tables",
		Aliases: []string{"ls"},
		Short:   "List the tables exposed by the Data Explorer",
		Long: `List the whitelisted tables with their approximate row counts and sizes.

Counts and sizes are estimates reported by the server and may be stale.
With --dev-mode a placeholder list is shown when the server cannot be reached.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format

Use --output to override: auto, text, markdown, json, csv`,
		Example: `  # List tables
  leapadmin tables

  # As JSON for scripts
  leapadmin tables -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTables(cmd)
		},
	}
}

func runTables(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	cat := cmdCtx.Catalog().Load(cmd.Context())
	if cat.Err != nil && !cat.Fallback && r.EffectiveMode() != output.ModeJSON {
		return fmt.Errorf("table catalog unavailable: %w", cat.Err)
	}
	if err := r.Catalog(cat); err != nil {
		return err
	}
	if cat.Err != nil && !cat.Fallback {
		return fmt.Errorf("table catalog unavailable: %w", cat.Err)
	}
	return nil
}

// BrowseOptions holds options for the browse command.
type BrowseOptions struct {
	Page int
}

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	opts := &BrowseOptions{}

	cmd := &cobra.Command{
		Use:   "browse <table>",
		Short: "Print one page of a table",
		Long: `Fetch one page of rows from a table and print it with its pagination footer.

Pages hold 20 rows. A page past the end is clamped to the last page by the
server; the footer shows the page actually returned. NULL cells print as
NULL and are distinct from empty strings.`,
		Example: `  # First page of users
  leapadmin browse users

  # Third page of audit logs as CSV
  leapadmin browse audit_logs --page 3 -o csv`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return completeTables(cmd), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Page, "page", "p", 1, "Page number (1-based)")

	return cmd
}

func runBrowse(cmd *cobra.Command, table string, opts *BrowseOptions) error {
	if opts.Page < 1 {
		return fmt.Errorf("--page must be at least 1, got %d", opts.Page)
	}

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	ctrl := browser.NewController(cmdCtx.Logger)
	ctrl.Apply(browser.Run(cmd.Context(), cmdCtx.Client, ctrl.SelectTableAt(table, opts.Page)))

	st := ctrl.State()
	if st.Err != nil {
		return st.Err
	}
	return cmdCtx.Renderer.Page(table, st.Result())
}

// completeTables offers table names from the server for shell completion.
func completeTables(cmd *cobra.Command) []string {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return nil
	}
	cat := cmdCtx.Catalog().Load(cmd.Context())
	names := make([]string, len(cat.Tables))
	for i, t := range cat.Tables {
		names[i] = t.Name
	}
	return names
}
