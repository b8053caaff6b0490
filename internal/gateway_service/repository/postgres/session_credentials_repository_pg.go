package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
)

var ErrSessionCredentialNotFound = errors.New("session credential not found")

type pgSessionCredentialRepository struct {
	db DB
}

// NewPgSessionCredentialRepository creates the keyed blob store holding the
// messaging session's identity keys and per-contact session material.
func NewPgSessionCredentialRepository(db DB) repository.SessionCredentialRepository {
	return &pgSessionCredentialRepository{db: db}
}

func (r *pgSessionCredentialRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT data FROM wa_session_credentials WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionCredentialNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r *pgSessionCredentialRepository) Put(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO wa_session_credentials (key, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query, key, data, time.Now().UTC())
	return err
}

func (r *pgSessionCredentialRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM wa_session_credentials WHERE key = $1`, key)
	return err
}

func (r *pgSessionCredentialRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM wa_session_credentials`)
	return err
}
