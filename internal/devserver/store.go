package devserver

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"

	// Database drivers: sqlite for the default in-process store, pgx for
	// postgres:// DSNs.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Supported store dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// ErrUserNotFound is returned when no user matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// UserRecord is a users row including the password hash.
type UserRecord struct {
	ID           int64
	Username     string
	Email        string
	Role         string
	PasswordHash string
}

// Store serves table pages and user lookups over database/sql.
type Store struct {
	db      *sql.DB
	dialect string
	sb      squirrel.StatementBuilderType
	logger  *slog.Logger
}

// OpenStore opens the database behind dsn. postgres:// and postgresql://
// DSNs use pgx; anything else is a sqlite path, ":memory:" by default.
func OpenStore(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	driver, dialect := "sqlite", DialectSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, dialect = "pgx", DialectPostgres
	}
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// Every sqlite :memory: connection is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}
	return NewStore(db, dialect, logger), nil
}

// NewStore wraps an open database.
func NewStore(db *sql.DB, dialect string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	placeholder := squirrel.PlaceholderFormat(squirrel.Question)
	if dialect == DialectPostgres {
		placeholder = squirrel.Dollar
	}
	return &Store{
		db:      db,
		dialect: dialect,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		logger:  logger,
	}
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() string { return s.dialect }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(s.dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Count returns the number of rows in t.
func (s *Store) Count(ctx context.Context, t Table) (int64, error) {
	query, args, err := s.sb.Select("COUNT(*)").From(t.Name).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.Name, err)
	}
	return n, nil
}

// Page returns up to limit rows of t ordered by id, starting at offset.
// Only t's declared columns are selected.
func (s *Store) Page(ctx context.Context, t Table, limit, offset int) ([]map[string]any, error) {
	cols := t.ColumnNames()
	query, args, err := s.sb.Select(cols...).
		From(t.Name).
		OrderBy("id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.Name, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]map[string]any, 0, limit)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = normalizeValue(vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", t.Name, err)
	}
	return out, nil
}

// normalizeValue converts driver values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

// UserByEmail looks up a user for login.
func (s *Store) UserByEmail(ctx context.Context, email string) (UserRecord, error) {
	return s.user(ctx, squirrel.Eq{"email": email})
}

// UserByID looks up a user by primary key.
func (s *Store) UserByID(ctx context.Context, id int64) (UserRecord, error) {
	return s.user(ctx, squirrel.Eq{"id": id})
}

func (s *Store) user(ctx context.Context, pred squirrel.Eq) (UserRecord, error) {
	query, args, err := s.sb.Select("id", "username", "email", "role", "password_hash").
		From("users").
		Where(pred).
		ToSql()
	if err != nil {
		return UserRecord{}, err
	}
	var u UserRecord
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// LoadFixtures replaces the contents of every table with fx in a single
// transaction.
func (s *Store) LoadFixtures(ctx context.Context, fx *Fixtures) error {
	hashes := make([]string, len(fx.Users))
	for i, u := range fx.Users {
		h, err := hashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		hashes[i] = h
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := len(Tables) - 1; i >= 0; i-- {
		query, args, err := s.sb.Delete(Tables[i].Name).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", Tables[i].Name, err)
		}
	}

	if len(fx.Users) > 0 {
		ins := s.sb.Insert("users").Columns("id", "username", "email", "password_hash", "role", "created_at", "updated_at")
		for i, u := range fx.Users {
			role := u.Role
			if role == "" {
				role = "user"
			}
			created := nullIfEmpty(u.CreatedAt)
			ins = ins.Values(u.ID, u.Username, u.Email, hashes[i], role, created, created)
		}
		if err := execInsert(ctx, tx, ins, "users"); err != nil {
			return err
		}
	}

	total := len(fx.Users)
	for _, t := range Tables {
		rows := fx.Rows(t.Name)
		if t.Name == "users" || len(rows) == 0 {
			continue
		}
		cols := t.ColumnNames()
		ins := s.sb.Insert(t.Name).Columns(cols...)
		for _, row := range rows {
			vals := make([]any, len(cols))
			for i, c := range cols {
				vals[i] = row[c]
			}
			ins = ins.Values(vals...)
		}
		if err := execInsert(ctx, tx, ins, t.Name); err != nil {
			return err
		}
		total += len(rows)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fixtures: %w", err)
	}
	s.logger.Info("fixtures loaded", "users", len(fx.Users), "rows", total)
	return nil
}

func execInsert(ctx context.Context, tx *sql.Tx, ins squirrel.InsertBuilder, table string) error {
	query, args, err := ins.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
