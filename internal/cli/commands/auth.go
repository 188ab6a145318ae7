package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/leapadmin/internal/auth"
	"github.com/leapstack-labs/leapadmin/internal/cli/output"
)

// LoginOptions holds options for the login command.
type LoginOptions struct {
	Email         string
	Password      string
	PasswordStdin bool
}

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	opts := &LoginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session token",
		Long: `Sign in with an email and password. The returned token is saved to the
session file and sent with every later request until it expires or the
server rejects it.

The password is prompted for without echo when stdin is a terminal.`,
		Example: `  # Prompt for the password
  leapadmin login --email admin@example.com

  # Non-interactive
  echo "$PASSWORD" | leapadmin login --email admin@example.com --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Account password (prefer the prompt or --password-stdin)")
	cmd.Flags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *LoginOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	in := bufio.NewReader(cmd.InOrStdin())

	email := strings.TrimSpace(opts.Email)
	if email == "" {
		if opts.PasswordStdin {
			return errors.New("--email is required with --password-stdin")
		}
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Email: ")
		if email, err = readLine(in); err != nil {
			return fmt.Errorf("read email: %w", err)
		}
	}

	password := opts.Password
	if password == "" {
		if password, err = readPassword(cmd, in, opts.PasswordStdin); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	res, err := cmdCtx.Client.Login(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	session := auth.NewSession(res.Token, res.User)
	if err := cmdCtx.Session.Save(session); err != nil {
		return err
	}
	cmdCtx.Logger.Debug("logged in", "email", email, "session", cmdCtx.Session.Path())

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(sessionOutput(session))
	}
	name := email
	if res.User != nil && res.User.Username != "" {
		name = res.User.Username
	}
	r.Success(fmt.Sprintf("Logged in as %s", name))
	if !session.ExpiresAt.IsZero() {
		r.Muted("Session expires " + session.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// readPassword prompts without echo on a terminal and reads a line otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}
	return readLine(in)
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			if err := cmdCtx.Session.Clear(); err != nil {
				return err
			}
			cmdCtx.Renderer.Success("Logged out")
			return nil
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Long: `Ask the server who the current token belongs to. A rejected token clears
the saved session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			user, err := cmdCtx.Client.Profile(cmd.Context())
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(user)
			}
			r.Println(output.FormatKeyValue("ID", user.IDString()))
			r.Println(output.FormatKeyValue("Username", user.Username))
			r.Println(output.FormatKeyValue("Email", user.Email))
			if user.Role != "" {
				r.Println(output.FormatKeyValue("Role", user.Role))
			}
			return nil
		},
	}
}

// SessionOutput is the JSON form of a saved session. The token itself is
// never printed.
type SessionOutput struct {
	User      *auth.User `json:"user,omitempty"`
	ExpiresAt string     `json:"expires_at,omitempty"`
}

func sessionOutput(s auth.Session) SessionOutput {
	out := SessionOutput{User: s.User}
	if !s.ExpiresAt.IsZero() {
		out.ExpiresAt = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return out
}
