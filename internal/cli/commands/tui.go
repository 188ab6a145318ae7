package commands

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapadmin/internal/cli/config"
	"github.com/leapstack-labs/leapadmin/internal/tui"
)

// TUIOptions holds options for the tui command.
type TUIOptions struct {
	Page int
}

// NewTUICommand creates the tui command.
func NewTUICommand() *cobra.Command {
	opts := &TUIOptions{}

	cmd := &cobra.Command{
		Use:     "tui [table]",
		Aliases: []string{"ui"},
		Short:   "Open the full-screen table browser",
		Long: `Open a full-screen browser with the table list on the left and the
selected table's rows on the right.

Keys: enter opens a table, n/p or the arrow keys change page, g/G jump to the
first or last page, r refreshes, tab switches panes, ? shows all keys.

Logs are only written when --log-file is set, since the browser owns the
terminal.`,
		Example: `  # Start on the table list
  leapadmin tui

  # Open audit_logs at page 4
  leapadmin tui audit_logs --page 4`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var table string
			if len(args) == 1 {
				table = args[0]
			}
			return runTUI(cmd, table, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Page, "page", "p", 1, "Page to open the table at")

	return cmd
}

func runTUI(cmd *cobra.Command, table string, opts *TUIOptions) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	if cfg.LogFile == "" {
		cmd.SetContext(context.WithValue(cmd.Context(), config.LoggerKey(), slog.New(slog.DiscardHandler)))
	}

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	model := tui.New(cmd.Context(), tui.Options{
		Catalog:      cmdCtx.Catalog(),
		Pages:        cmdCtx.Client,
		Health:       cmdCtx.Client,
		InitialTable: table,
		InitialPage:  opts.Page,
		Server:       cmdCtx.Client.BaseURL(),
		Logger:       cmdCtx.Logger,
	})

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	return nil
}
