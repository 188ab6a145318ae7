package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapadmin/internal/auth"
	"github.com/leapstack-labs/leapadmin/internal/cli/config"
	"github.com/leapstack-labs/leapadmin/internal/cli/output"
)

// StatusOutput is the JSON output of the status command.
type StatusOutput struct {
	Server     string         `json:"server"`
	Reachable  bool           `json:"reachable"`
	Status     string         `json:"status,omitempty"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	DevMode    bool           `json:"dev_mode"`
	TokenFlag  bool           `json:"token_flag"`
	Session    *SessionOutput `json:"session,omitempty"`
	ConfigFile string         `json:"config_file,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"health"},
		Short:   "Check the server and the saved session",
		Long: `Call the server health endpoint and report the saved session. Exits
non-zero when the server cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	out := StatusOutput{
		Server:     cmdCtx.Client.BaseURL(),
		DevMode:    cmdCtx.Cfg.DevMode,
		TokenFlag:  cmdCtx.Cfg.Token != "",
		ConfigFile: config.GetConfigFileUsed(),
	}
	if s, err := cmdCtx.Session.Load(); err == nil && !s.Expired(time.Now()) {
		so := sessionOutput(s)
		out.Session = &so
	} else if err != nil && !errors.Is(err, auth.ErrNoSession) {
		cmdCtx.Logger.Warn("ignoring unreadable session", "error", err)
	}

	h, healthErr := cmdCtx.Client.Health(cmd.Context())
	if healthErr == nil {
		out.Reachable, out.Status, out.Message = true, h.Status, h.Message
	} else {
		out.Error = healthErr.Error()
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
		return healthErr
	}

	r.Header(1, "leapadmin status")
	r.Println(output.FormatKeyValue("Server", out.Server))
	if healthErr != nil {
		r.Error(out.Error)
	} else {
		status := out.Status
		if out.Message != "" {
			status += " (" + out.Message + ")"
		}
		r.Println(output.FormatKeyValue("Status", status))
	}

	switch {
	case out.TokenFlag:
		r.Println(output.FormatKeyValue("Auth", "token from --token / LEAPADMIN_TOKEN"))
	case out.Session != nil && out.Session.User != nil:
		r.Println(output.FormatKeyValue("Auth", "logged in as "+out.Session.User.Email))
	case out.Session != nil:
		r.Println(output.FormatKeyValue("Auth", "logged in"))
	default:
		r.Println(output.FormatKeyValue("Auth", "not logged in"))
	}
	if out.Session != nil && out.Session.ExpiresAt != "" {
		r.Println(output.FormatKeyValue("Expires", out.Session.ExpiresAt))
	}
	if out.ConfigFile != "" {
		r.Println(output.FormatKeyValue("Config", out.ConfigFile))
	}
	if out.DevMode {
		r.Muted("dev mode: placeholder tables are offered when the server is unreachable")
	}

	return healthErr
}
