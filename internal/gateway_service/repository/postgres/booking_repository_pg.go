package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
)

var ErrBookingNotFound = errors.New("booking not found")

type pgBookingRepository struct {
	db DB
}

// NewPgBookingRepository creates the read-only booking query surface.
func NewPgBookingRepository(db DB) repository.BookingRepository {
	return &pgBookingRepository{db: db}
}

func (r *pgBookingRepository) GetWithDetails(ctx context.Context, id string) (*domain.Booking, error) {
	query := `
		SELECT b.id, b.tenant_id, b.status, b.start_time,
		       c.id, c.name, COALESCE(c.phone, ''),
		       s.id, s.name, COALESCE(s.phone, ''),
		       t.id, t.name, COALESCE(t.whatsapp_phone, '')
		FROM bookings b
		JOIN customers c ON c.id = b.customer_id
		JOIN staff s ON s.id = b.staff_id
		JOIN tenants t ON t.id = b.tenant_id
		WHERE b.id = $1
	`
	booking := &domain.Booking{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&booking.ID, &booking.TenantID, &booking.Status, &booking.StartTime,
		&booking.Customer.ID, &booking.Customer.Name, &booking.Customer.Phone,
		&booking.Staff.ID, &booking.Staff.Name, &booking.Staff.Phone,
		&booking.Tenant.ID, &booking.Tenant.Name, &booking.Tenant.WhatsAppPhone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	services, err := r.loadServices(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.Services = services
	return booking, nil
}

func (r *pgBookingRepository) loadServices(ctx context.Context, bookingID string) ([]domain.ServiceItem, error) {
	query := `
		SELECT sv.id, sv.name, sv.price_cents, sv.duration_min
		FROM booking_services bs
		JOIN services sv ON sv.id = bs.service_id
		WHERE bs.booking_id = $1
		ORDER BY sv.name
	`
	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []domain.ServiceItem
	for rows.Next() {
		var s domain.ServiceItem
		if err := rows.Scan(&s.ID, &s.Name, &s.PriceCents, &s.DurationMin); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *pgBookingRepository) FindStartingBetween(ctx context.Context, from, to time.Time) ([]*domain.Booking, error) {
	query := `
		SELECT id, tenant_id, status, start_time
		FROM bookings
		WHERE start_time >= $1 AND start_time < $2
		  AND status IN ($3, $4)
		ORDER BY start_time
	`
	rows, err := r.db.Query(ctx, query, from, to, domain.BookingStatusPending, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b := &domain.Booking{}
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Status, &b.StartTime); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
