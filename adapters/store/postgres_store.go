package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/layer-3/nostrauth/adapters/store/migrations"
	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/internal/dbx"
)

// PostgresStore keeps challenges and reads accounts from PostgreSQL
type PostgresStore struct {
	db dbx.DBTX
}

// NewPostgresStore creates a store bound to the given DBTX
func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pgx-backed *sql.DB and verifies the connection
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateChallenge inserts a freshly issued challenge
func (s *PostgresStore) CreateChallenge(ctx context.Context, challenge *core.Challenge) error {
	query := `
		INSERT INTO auth_challenges (session_id, nonce, challenge, domain, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query,
		challenge.SessionID, challenge.Nonce, challenge.Text, challenge.Domain, challenge.ExpiresAt,
	); err != nil {
		return fmt.Errorf("failed to insert challenge: %w", err)
	}
	return nil
}

// FindChallenge loads the challenge for a (session id, nonce) pair
func (s *PostgresStore) FindChallenge(ctx context.Context, sessionID, nonce string) (*core.Challenge, error) {
	query := `
		SELECT session_id, nonce, challenge, domain, expires_at, is_used, event_id, created_at
		FROM auth_challenges
		WHERE session_id = $1 AND nonce = $2
	`
	var (
		ch      core.Challenge
		eventID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, sessionID, nonce).Scan(
		&ch.SessionID, &ch.Nonce, &ch.Text, &ch.Domain, &ch.ExpiresAt, &ch.IsUsed, &eventID, &ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to query challenge: %w", err)
	}
	if eventID.Valid {
		ch.EventID = &eventID.String
	}
	return &ch, nil
}

// MarkChallengeUsed consumes the challenge with a conditional update. Only
// one caller can observe a changed row.
func (s *PostgresStore) MarkChallengeUsed(ctx context.Context, sessionID, nonce, eventID string) (bool, error) {
	query := `
		UPDATE auth_challenges
		SET is_used = TRUE, event_id = $3, used_at = now()
		WHERE session_id = $1 AND nonce = $2 AND is_used = FALSE
	`
	res, err := s.db.ExecContext(ctx, query, sessionID, nonce, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// FindAccount resolves an account by DUID
func (s *PostgresStore) FindAccount(ctx context.Context, duid string) (*core.Account, error) {
	query := `
		SELECT id, npub, nip05, role, is_active
		FROM user_identities
		WHERE id = $1
	`
	var (
		acc   core.Account
		nip05 sql.NullString
		role  string
	)
	err := s.db.QueryRowContext(ctx, query, duid).Scan(&acc.ID, &acc.Npub, &nip05, &role, &acc.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	acc.Role, err = core.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("account has invalid role: %w", err)
	}
	if nip05.Valid && nip05.String != "" {
		acc.Nip05 = &nip05.String
	}
	return &acc, nil
}
