package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bancolink/internal/infrastructure/crypto"
	"bancolink/internal/infrastructure/postgres"
)

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS web_sessions (
			id         TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	createIndexSQL = `CREATE INDEX IF NOT EXISTS idx_web_sessions_expires_at ON web_sessions (expires_at)`
	deleteExpired  = `DELETE FROM web_sessions WHERE expires_at <= $1`

	selectSession = `SELECT payload FROM web_sessions WHERE id = $1 AND expires_at > $2`
	upsertSession = `
		INSERT INTO web_sessions (id, payload, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, updated_at = NOW()`
	deleteSession = `DELETE FROM web_sessions WHERE id = $1`
)

// DB is the subset of *postgres.DB the store needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) postgres.Row
}

// PostgresStore keeps sessions in the web_sessions table. Payloads are
// encrypted at rest since they carry link tokens.
type PostgresStore struct {
	db        DB
	encryptor *crypto.Encryptor
	now       func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db DB, encryptor *crypto.Encryptor) *PostgresStore {
	return &PostgresStore{db: db, encryptor: encryptor, now: time.Now}
}

// Migrate creates the sessions table if needed and purges expired rows.
func (p *PostgresStore) Migrate(ctx context.Context) (int64, error) {
	for _, stmt := range []string{createTableSQL, createIndexSQL} {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("failed to migrate sessions table: %w", err)
		}
	}
	return p.PurgeExpired(ctx)
}

// PurgeExpired deletes sessions past their expiry and returns how many.
func (p *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, deleteExpired, p.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	purged, _ := res.RowsAffected()
	return purged, nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Data, error) {
	var payload string
	err := p.db.QueryRowContext(ctx, selectSession, id, p.now()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	plaintext, err := p.encryptor.Decrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}
	data, err := decode([]byte(plaintext))
	if err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return data, nil
}

func (p *PostgresStore) Put(ctx context.Context, id string, data *Data, ttl time.Duration) error {
	raw, err := encode(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	payload, err := p.encryptor.Encrypt(string(raw))
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, upsertSession, id, payload, p.now().Add(ttl)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, deleteSession, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
