package repository

import (
	"context"
	"time"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

// NotificationLogRepository persists the append-only notification log.
// (booking_id, kind, status='sent') is the idempotency key.
type NotificationLogRepository interface {
	Create(ctx context.Context, rec *domain.NotificationRecord) (*domain.NotificationRecord, error)
	HasSent(ctx context.Context, bookingID string, kind domain.NotificationKind) (bool, error)
}

// BookingRepository is the read-only query surface over the scheduling tables.
type BookingRepository interface {
	GetWithDetails(ctx context.Context, id string) (*domain.Booking, error)
	// FindStartingBetween returns pending/confirmed bookings with
	// start_time in [from, to), ordered by start_time.
	FindStartingBetween(ctx context.Context, from, to time.Time) ([]*domain.Booking, error)
}

// OutboundMessageRepository is the durable tier of the outbound message store.
type OutboundMessageRepository interface {
	Create(ctx context.Context, rec *domain.OutboundMessageRecord) error
	// GetBody looks a body up by message id; recipientAddress narrows the
	// match when non-empty. Returns ErrOutboundMessageNotFound when absent.
	GetBody(ctx context.Context, messageID, recipientAddress string) (string, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionCredentialRepository is the keyed blob store backing the messaging
// session, so a restart can resume without re-pairing.
type SessionCredentialRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	DeleteAll(ctx context.Context) error
}

// TenantRepository reads tenant contact data for onboarding notifications.
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

// StaffRepository reads staff contact data for invite notifications.
type StaffRepository interface {
	GetWithTenant(ctx context.Context, staffID string) (*domain.Staff, *domain.Tenant, error)
}
