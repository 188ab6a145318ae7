package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cast"
)

// ErrNoSession is returned by FileStore.Load when no session is stored.
var ErrNoSession = errors.New("not logged in")

// User is the account returned by the login and profile endpoints.
type User struct {
	ID       any    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
}

// IDString renders the server-assigned id, which may be numeric or a string.
func (u User) IDString() string {
	return cast.ToString(u.ID)
}

// Session is the persisted login state.
type Session struct {
	Token     string    `json:"token"`
	User      *User     `json:"user,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Expired reports whether the session token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	if !s.ExpiresAt.IsZero() {
		return !now.Before(s.ExpiresAt)
	}
	return Expired(s.Token, now)
}

// NewSession builds a session for token, taking the expiry from its exp
// claim when it is a JWT.
func NewSession(token string, user *User) Session {
	s := Session{Token: token, User: user}
	if exp, ok := TokenExpiry(token); ok {
		s.ExpiresAt = exp
	}
	return s
}

// DefaultSessionPath returns ~/.leapadmin/session.json.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".leapadmin", "session.json"), nil
}

// FileStore keeps a Session in a JSON file readable only by its owner.
type FileStore struct {
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// NewFileStore creates a store at path. A nil logger discards output.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{path: path, now: time.Now, logger: logger}
}

// Path returns the session file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the stored session. It returns ErrNoSession when the file does
// not exist or holds no token.
func (f *FileStore) Load() (Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", f.path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("parse session %s: %w", f.path, err)
	}
	if s.Token == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Save writes s atomically with mode 0600.
func (f *FileStore) Save(s Session) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("install session file: %w", err)
	}

	f.logger.Debug("session saved", "path", f.path)
	return nil
}

// Clear removes the stored session. Clearing an absent session is not an
// error.
func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session %s: %w", f.path, err)
	}
	f.logger.Debug("session cleared", "path", f.path)
	return nil
}

// Token implements TokenProvider. An expired or unreadable session is
// cleared and reported as absent.
func (f *FileStore) Token() (string, bool) {
	s, err := f.Load()
	if errors.Is(err, ErrNoSession) {
		return "", false
	}
	if err != nil {
		f.logger.Warn("unreadable session, clearing", "path", f.path, "error", err)
		if err := f.Clear(); err != nil {
			f.logger.Warn("failed to clear unreadable session", "error", err)
		}
		return "", false
	}
	if s.Expired(f.now()) {
		f.logger.Info("session expired, clearing", "path", f.path)
		if err := f.Clear(); err != nil {
			f.logger.Warn("failed to clear expired session", "error", err)
		}
		return "", false
	}
	return s.Token, true
}
