package credstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// walJournalSizeLimit caps the WAL journal at 64 MiB.
const walJournalSizeLimit = 67108864

// SQLiteStore implements Store on an embedded SQLite database in WAL
// mode. Tokens are stored in plain text with the database file expected
// to carry owner-only permissions.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewSQLiteStore opens (or creates) the database at dbPath, applies
// migrations, and prepares the statement set. Use ":memory:" for tests.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("opening credential database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("credstore: open sqlite: %w", err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("credstore: prepare statements: %w", err)
	}

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("credstore: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// runMigrations applies pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("credstore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("credstore: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("credstore: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (s *SQLiteStore) prepareStatements(ctx context.Context) error {
	var err error

	s.getStmt, err = s.db.PrepareContext(ctx, `
		SELECT user_id, device_token, user_token, user_token_expires_at, connected, last_sync_at
		FROM credentials WHERE user_id = ?`)
	if err != nil {
		return err
	}

	s.putStmt, err = s.db.PrepareContext(ctx, `
		INSERT INTO credentials (user_id, device_token, user_token, user_token_expires_at, connected, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			device_token = excluded.device_token,
			user_token = excluded.user_token,
			user_token_expires_at = excluded.user_token_expires_at,
			connected = excluded.connected,
			last_sync_at = excluded.last_sync_at`)
	if err != nil {
		return err
	}

	s.deleteStmt, err = s.db.PrepareContext(ctx, `DELETE FROM credentials WHERE user_id = ?`)

	return err
}

// Get returns the credential for userID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Credential, error) {
	var (
		cred              Credential
		expiresAt, syncAt int64
		connected         int
	)

	err := s.getStmt.QueryRowContext(ctx, userID).Scan(
		&cred.UserID,
		&cred.DeviceToken,
		&cred.UserToken,
		&expiresAt,
		&connected,
		&syncAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("credstore: reading credential: %w", err)
	}

	if expiresAt != 0 {
		cred.UserTokenExpiresAt = time.Unix(expiresAt, 0).UTC()
	}

	if syncAt != 0 {
		cred.LastSyncAt = time.Unix(syncAt, 0).UTC()
	}

	cred.Connected = connected != 0

	return &cred, nil
}

// Put creates or overwrites the credential in a single upsert.
func (s *SQLiteStore) Put(ctx context.Context, cred *Credential) error {
	var expiresAt, syncAt int64

	if !cred.UserTokenExpiresAt.IsZero() {
		expiresAt = cred.UserTokenExpiresAt.Unix()
	}

	if !cred.LastSyncAt.IsZero() {
		syncAt = cred.LastSyncAt.Unix()
	}

	connected := 0
	if cred.Connected {
		connected = 1
	}

	_, err := s.putStmt.ExecContext(ctx,
		cred.UserID,
		cred.DeviceToken,
		cred.UserToken,
		expiresAt,
		connected,
		syncAt,
	)
	if err != nil {
		return fmt.Errorf("credstore: writing credential: %w", err)
	}

	return nil
}

// Delete removes the credential for userID.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, userID); err != nil {
		return fmt.Errorf("credstore: deleting credential: %w", err)
	}

	return nil
}

// Close closes the prepared statements and the database.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.putStmt, s.deleteStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}
