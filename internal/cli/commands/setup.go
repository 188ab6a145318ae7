package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapadmin/internal/api"
	"github.com/leapstack-labs/leapadmin/internal/auth"
	"github.com/leapstack-labs/leapadmin/internal/browser"
	"github.com/leapstack-labs/leapadmin/internal/cli/config"
	"github.com/leapstack-labs/leapadmin/internal/cli/output"
)

// rendererKey is used to store the renderer in the command context.
type rendererKey struct{}

// RendererKey returns the context key the root command stores the renderer
// under.
func RendererKey() any {
	return rendererKey{}
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Client   *api.Client
	Session  *auth.FileStore
}

// NewCommandContext builds the API client and renderer for cmd. The client
// sends the --token value when set and the saved session otherwise.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	session := auth.NewFileStore(cfg.SessionFile, logger)

	client, err := api.New(api.Config{
		BaseURL: cfg.APIURL,
		Prefix:  cfg.APIPrefix,
		Timeout: cfg.Timeout,
		Tokens:  auth.Chain{auth.StaticToken(cfg.Token), session},
		OnUnauthorized: clearSessionOnReject(cfg.Token, session, logger),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: getRenderer(cmd, cfg),
		Client:   client,
		Session:  session,
	}, nil
}

// clearSessionOnReject returns the 401 hook. The saved session is cleared
// only when it supplied the token, never for an explicit --token or
// LEAPADMIN_TOKEN.
func clearSessionOnReject(explicitToken string, session *auth.FileStore, logger *slog.Logger) func() {
	return func() {
		if explicitToken != "" {
			logger.Info("server rejected the configured token; saved session left untouched")
			return
		}
		logger.Info("server rejected the saved session, clearing it")
		if err := session.Clear(); err != nil {
			logger.Warn("failed to clear session", "error", err)
		}
	}
}

// Catalog returns a loader over the client honouring dev mode.
func (c *CommandContext) Catalog() *browser.CatalogLoader {
	return browser.NewCatalogLoader(c.Client, c.Cfg.DevMode, c.Logger)
}

// getConfig returns the configuration loaded by the root command, loading
// defaults and the environment when a command runs standalone.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

func getRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	if r, ok := contextValue(cmd.Context(), rendererKey{}).(*output.Renderer); ok {
		return r
	}
	mode, _ := output.ParseMode(cfg.OutputFormat)
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
}

func contextValue(ctx context.Context, key any) any {
	if ctx == nil {
		return nil
	}
	return ctx.Value(key)
}
