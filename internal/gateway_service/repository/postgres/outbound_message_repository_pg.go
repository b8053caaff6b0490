package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
)

var ErrOutboundMessageNotFound = errors.New("outbound message not found")

type pgOutboundMessageRepository struct {
	db DB
}

// NewPgOutboundMessageRepository creates the durable outbound message mirror.
func NewPgOutboundMessageRepository(db DB) repository.OutboundMessageRepository {
	return &pgOutboundMessageRepository{db: db}
}

func (r *pgOutboundMessageRepository) Create(ctx context.Context, rec *domain.OutboundMessageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO wa_outbound_messages (message_id, recipient_address, body, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, recipient_address) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, rec.MessageID, rec.RecipientAddress, rec.Body, rec.CreatedAt)
	return err
}

func (r *pgOutboundMessageRepository) GetBody(ctx context.Context, messageID, recipientAddress string) (string, error) {
	query := `SELECT body FROM wa_outbound_messages WHERE message_id = $1`
	args := []any{messageID}
	if recipientAddress != "" {
		query += ` AND recipient_address = $2`
		args = append(args, recipientAddress)
	}
	query += ` LIMIT 1`

	var body string
	err := r.db.QueryRow(ctx, query, args...).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOutboundMessageNotFound
		}
		return "", err
	}
	return body, nil
}

func (r *pgOutboundMessageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM wa_outbound_messages WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
