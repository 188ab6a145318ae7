// Package cli provides the command-line interface for leapadmin.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapadmin/internal/api"
	"github.com/leapstack-labs/leapadmin/internal/cli/commands"
	"github.com/leapstack-labs/leapadmin/internal/cli/config"
	"github.com/leapstack-labs/leapadmin/internal/cli/output"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipConfig lists commands that run without loading configuration.
var skipConfig = map[string]bool{
	"help":       true,
	"completion": true,
	"__complete": true,
	"version":    true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var logCloser io.Closer

	rootCmd := &cobra.Command{
		Use:   "leapadmin",
		Short: "leapadmin - terminal client for the admin Data Explorer",
		Long: `leapadmin browses the tables exposed by the admin Data Explorer API.

It lists the whitelisted tables, pages through their rows, and offers an
interactive shell and a full-screen browser. "leapadmin devserver" runs a
local backend that speaks the same API for development.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			api.Version = Version
			if skipConfig[cmd.Name()] {
				return nil
			}

			// Flags of the running command include the inherited persistent ones.
			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logCloser = closer

			ctx := context.WithValue(cmd.Context(), config.LoggerKey(), logger)
			mode, _ := output.ParseMode(cfg.OutputFormat)
			ctx = context.WithValue(ctx, commands.RendererKey(), output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode))
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					logger.Debug("using config file", "path", configFile)
				}
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built ` + BuildDate + ` (` + GitCommit + `)
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./leapadmin.yaml or ~/.leapadmin/config.yaml)")
	pf.String("api-url", "", "Server root URL (default: "+config.DefaultAPIURL+")")
	pf.String("api-prefix", "", "Path the admin API is mounted under (default: "+config.DefaultAPIPrefix+")")
	pf.String("token", "", "Bearer token; overrides the saved session")
	pf.String("session-file", "", "Session file written by login (default: ~/.leapadmin/session.json)")
	pf.Duration("timeout", config.DefaultTimeout, "Per-request timeout")
	pf.Bool("dev-mode", false, "Offer placeholder tables when the backend is unreachable")
	pf.BoolP("verbose", "v", false, "Verbose output (debug logging)")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-file", "", "Write logs to this file instead of stderr")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json|csv)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		modes := make([]string, len(output.Modes))
		for i, m := range output.Modes {
			modes[i] = string(m)
		}
		return modes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{Version: Version, BuildDate: BuildDate, GitCommit: GitCommit}))
	rootCmd.AddCommand(commands.NewTablesCommand())
	rootCmd.AddCommand(commands.NewBrowseCommand())
	rootCmd.AddCommand(commands.NewShellCommand())
	rootCmd.AddCommand(commands.NewTUICommand())
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewLogoutCommand())
	rootCmd.AddCommand(commands.NewWhoamiCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewDevServerCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// newLogger builds the slog logger for the run. Logs go to stderr unless a
// log file is configured.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	w, closer := stderr, io.Closer(nil)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.EffectiveLogLevel()})
	return slog.New(handler), closer, nil
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapadmin.

To load completions:

Bash:
  $ source <(leapadmin completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ leapadmin completion bash > /etc/bash_completion.d/leapadmin
  # macOS:
  $ leapadmin completion bash > $(brew --prefix)/etc/bash_completion.d/leapadmin

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ leapadmin completion zsh > "${fpath[1]}/_leapadmin"

Fish:
  $ leapadmin completion fish | source

  # To load completions for each session, execute once:
  $ leapadmin completion fish > ~/.config/fish/completions/leapadmin.fish

PowerShell:
  PS> leapadmin completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
