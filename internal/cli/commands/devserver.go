package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapadmin/internal/cli/config"
	"github.com/leapstack-labs/leapadmin/internal/devserver"
)

// NewDevServerCommand creates the devserver command.
func NewDevServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local backend that serves the admin Data Explorer API",
		Long: `Start a development backend implementing the endpoints leapadmin talks to:

  GET  /health
  POST /api/admin/login
  GET  /api/admin/profile
  GET  /api/admin/data-explorer/tables
  GET  /api/admin/data-explorer/tables/{table}/data?page=&limit=
  GET  /metrics

Data lives in an in-memory SQLite database by default. Pass a postgres://
DSN to use PostgreSQL instead. Demo rows come from the built-in fixtures
or from --fixtures; with --watch the file is reloaded when it changes.

Demo accounts: admin@example.com / admin123, alice@example.com / alice123.`,
		Example: `  # Serve demo data on 127.0.0.1:8080
  leapadmin devserver

  # Custom fixtures, reloaded on save
  leapadmin devserver --fixtures ./fixtures.yaml --watch

  # Against PostgreSQL
  leapadmin devserver --dsn postgres://localhost:5432/leapadmin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevServer(cmd)
		},
	}

	cmd.Flags().String("addr", config.DefaultDevAddr, "Listen address")
	cmd.Flags().String("dsn", config.DefaultDevDSN, "Database DSN (SQLite path, :memory:, or postgres://)")
	cmd.Flags().String("fixtures", "", "Fixture YAML file (default: built-in demo data)")
	cmd.Flags().Bool("watch", false, "Reload --fixtures when the file changes")
	cmd.Flags().String("secret", "", "Token signing secret")
	cmd.Flags().Duration("token-ttl", config.DefaultDevTokenTTL, "Lifetime of issued tokens (0 disables expiry)")

	return cmd
}

func runDevServer(cmd *cobra.Command) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	logger := config.GetLogger(cmd.Context())
	dc := cfg.DevServer

	if dc.Watch && dc.Fixtures == "" {
		return fmt.Errorf("--watch needs --fixtures")
	}
	if dc.Secret == config.DefaultDevSecret {
		logger.Warn("using the built-in token secret; set devserver.secret outside local development")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := devserver.New(ctx, devserver.Options{
		Addr:     dc.Addr,
		DSN:      dc.DSN,
		Fixtures: dc.Fixtures,
		Watch:    dc.Watch,
		Secret:   dc.Secret,
		TokenTTL: dc.TokenTTL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Serving the admin API on http://%s (%s)\n", dc.Addr, srv.Store().Dialect())
	_, _ = fmt.Fprintf(out, "  export LEAPADMIN_API_URL=http://%s\n", dc.Addr)
	_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
