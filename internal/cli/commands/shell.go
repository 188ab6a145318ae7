package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapadmin/internal/browser"
	"github.com/leapstack-labs/leapadmin/internal/cli/output"
)

const shellPrompt = "leapadmin> "

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Browse tables interactively from a prompt",
		Long: `Start an interactive prompt for paging through tables.

Type .help for commands. Tab completes commands and table names, and the
arrow keys walk the history.`,
		Example: `  leapadmin shell
  leapadmin> .use users
  leapadmin users[1/1]> .next`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
}

func runShell(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sh := newShell(cmdCtx.Catalog(), cmdCtx.Client, cmdCtx.Renderer, cmdCtx.Logger)
	sh.loadCatalog(ctx)

	var historyFile string
	if cmdCtx.Cfg.SessionFile != "" {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.SessionFile), "shell_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    sh.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leapadmin shell (%s)\n", cmdCtx.Client.BaseURL())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if quit := sh.exec(ctx, line); quit {
			return nil
		}
		rl.SetPrompt(sh.prompt())
		// Table names may have arrived with a retried catalog.
		rl.Config.AutoComplete = sh.completer()
	}
}

// shell holds the state of an interactive session. Requests run
// synchronously, so every response applied is the latest one.
type shell struct {
	catalog *browser.CatalogLoader
	pages   browser.PageSource
	r       *output.Renderer
	ctrl    *browser.Controller
	tables  []browser.TableSummary
}

func newShell(catalog *browser.CatalogLoader, pages browser.PageSource, r *output.Renderer, logger *slog.Logger) *shell {
	return &shell{
		catalog: catalog,
		pages:   pages,
		r:       r,
		ctrl:    browser.NewController(logger),
	}
}

func (s *shell) prompt() string {
	st := s.ctrl.State()
	if !st.HasSelection {
		return shellPrompt
	}
	return fmt.Sprintf("leapadmin %s[%d/%d]> ", st.SelectedTable, st.CurrentPage, st.TotalPages)
}

// loadCatalog fetches the table list and reports it.
func (s *shell) loadCatalog(ctx context.Context) {
	cat := s.catalog.Load(ctx)
	s.tables = cat.Tables
	if err := s.r.Catalog(cat); err != nil {
		s.r.Error(err.Error())
	}
}

// exec runs one input line and reports whether the session should end.
func (s *shell) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ".") {
		// A bare word opens that table.
		line = ".use " + line
	}

	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printShellHelp(s.r.Writer())

	case ".tables":
		s.loadCatalog(ctx)

	case ".use":
		if len(args) == 0 {
			s.r.Error("Usage: .use <table> [page]")
			return false
		}
		page := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				s.r.Error(fmt.Sprintf("invalid page %q", args[1]))
				return false
			}
			page = n
		}
		s.fetch(ctx, s.ctrl.SelectTableAt(args[0], page))

	case ".page":
		if len(args) != 1 {
			s.r.Error("Usage: .page <n>")
			return false
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			s.r.Error(fmt.Sprintf("invalid page %q", args[0]))
			return false
		}
		req, ok := s.ctrl.GoToPage(n)
		s.navigate(ctx, req, ok)

	case ".next":
		req, ok := s.ctrl.NextPage()
		s.navigate(ctx, req, ok)

	case ".prev":
		req, ok := s.ctrl.PrevPage()
		s.navigate(ctx, req, ok)

	case ".first":
		req, ok := s.ctrl.GoToPage(1)
		s.navigate(ctx, req, ok)

	case ".last":
		req, ok := s.ctrl.GoToPage(s.ctrl.State().TotalPages)
		s.navigate(ctx, req, ok)

	case ".refresh":
		if !s.ctrl.State().HasSelection {
			s.loadCatalog(ctx)
			return false
		}
		req, ok := s.ctrl.Refresh()
		s.navigate(ctx, req, ok)

	case ".clear":
		s.ctrl.ClearSelection()
		s.r.Muted("(no table selected)")

	default:
		s.r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

// navigate issues req when the move is allowed.
func (s *shell) navigate(ctx context.Context, req browser.Request, ok bool) {
	st := s.ctrl.State()
	if !ok {
		switch {
		case !st.HasSelection:
			s.r.Warning("no table selected (use .use <table>)")
		default:
			s.r.Warning(fmt.Sprintf("no such page (table has %d)", st.TotalPages))
		}
		return
	}
	s.fetch(ctx, req)
}

func (s *shell) fetch(ctx context.Context, req browser.Request) {
	s.ctrl.Apply(browser.Run(ctx, s.pages, req))
	st := s.ctrl.State()
	if st.Err != nil {
		s.r.Error(st.LastError)
		return
	}
	if err := s.r.Page(st.SelectedTable, st.Result()); err != nil {
		s.r.Error(err.Error())
	}
}

func (s *shell) completer() *readline.PrefixCompleter {
	names := make([]readline.PrefixCompleterInterface, len(s.tables))
	for i, t := range s.tables {
		names[i] = readline.PcItem(t.Name)
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".use", names...),
		readline.PcItem(".tables"),
		readline.PcItem(".page"),
		readline.PcItem(".next"),
		readline.PcItem(".prev"),
		readline.PcItem(".first"),
		readline.PcItem(".last"),
		readline.PcItem(".refresh"),
		readline.PcItem(".clear"),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
	)
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .tables             List tables
  .use <table> [n]    Open a table at page n (default 1); a bare table name works too
  .page <n>           Go to page n
  .next / .prev       Next or previous page
  .first / .last      First or last page
  .refresh            Reload the current page (or the table list)
  .clear              Close the current table
  .help               Show this help message
  .quit / .exit       Exit the shell
`
	_, _ = fmt.Fprintln(w, help)
}
