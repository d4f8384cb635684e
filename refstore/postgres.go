package refstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

//go:embed migrations.sql
var migrationSQL string

// noExpiry stands in for a zero TTL; expires_at is NOT NULL.
const noExpiry = 100 * 365 * 24 * time.Hour

// PostgresStore keeps references in the cart_sessions table.
type PostgresStore struct {
	DB *sql.DB

	ttl time.Duration
	now func() time.Time
}

func NewPostgresStore(dsn string, ttl time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStoreFromDB(db, ttl), nil
}

// NewPostgresStoreFromDB wraps an open handle.
func NewPostgresStoreFromDB(db *sql.DB, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = noExpiry
	}
	return &PostgresStore{DB: db, ttl: ttl, now: time.Now}
}

// Migrate creates the table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, migrationSQL)
	return err
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (string, error) {
	var cartID string
	err := s.DB.QueryRowContext(ctx,
		`SELECT cart_id FROM cart_sessions WHERE session_id = $1 AND expires_at > $2`,
		sessionID, s.now(),
	).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return cartID, err
}

func (s *PostgresStore) Save(ctx context.Context, sessionID, cartID string) error {
	now := s.now()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO cart_sessions (session_id, cart_id, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id)
		DO UPDATE SET cart_id = EXCLUDED.cart_id, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`, sessionID, cartID, now.Add(s.ttl), now)
	return err
}

func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM cart_sessions WHERE session_id = $1`, sessionID)
	return err
}
