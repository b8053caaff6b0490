package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
)

type pgNotificationLogRepository struct {
	db DB
}

// NewPgNotificationLogRepository creates the PostgreSQL notification log.
func NewPgNotificationLogRepository(db DB) repository.NotificationLogRepository {
	return &pgNotificationLogRepository{db: db}
}

func (r *pgNotificationLogRepository) Create(ctx context.Context, rec *domain.NotificationRecord) (*domain.NotificationRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}

	query := `
		INSERT INTO wa_notification_log (
			id, tenant_id, booking_id, kind, status, recipient, rendered_body, error_detail, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.TenantID, rec.BookingID, rec.Kind, rec.Status,
		rec.Recipient, rec.RenderedBody, rec.ErrorDetail, rec.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *pgNotificationLogRepository) HasSent(ctx context.Context, bookingID string, kind domain.NotificationKind) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM wa_notification_log
			WHERE booking_id = $1 AND kind = $2 AND status = $3
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, bookingID, kind, domain.NotificationStatusSent).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
