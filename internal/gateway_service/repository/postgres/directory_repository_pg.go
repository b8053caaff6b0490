package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrStaffNotFound  = errors.New("staff not found")
)

type pgTenantRepository struct {
	db DB
}

func NewPgTenantRepository(db DB) repository.TenantRepository {
	return &pgTenantRepository{db: db}
}

func (r *pgTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	tenant := &domain.Tenant{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, COALESCE(whatsapp_phone, '') FROM tenants WHERE id = $1`, id,
	).Scan(&tenant.ID, &tenant.Name, &tenant.WhatsAppPhone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return tenant, nil
}

type pgStaffRepository struct {
	db DB
}

func NewPgStaffRepository(db DB) repository.StaffRepository {
	return &pgStaffRepository{db: db}
}

func (r *pgStaffRepository) GetWithTenant(ctx context.Context, staffID string) (*domain.Staff, *domain.Tenant, error) {
	staff := &domain.Staff{}
	tenant := &domain.Tenant{}
	query := `
		SELECT s.id, s.name, COALESCE(s.phone, ''),
		       t.id, t.name, COALESCE(t.whatsapp_phone, '')
		FROM staff s
		JOIN tenants t ON t.id = s.tenant_id
		WHERE s.id = $1
	`
	err := r.db.QueryRow(ctx, query, staffID).Scan(
		&staff.ID, &staff.Name, &staff.Phone,
		&tenant.ID, &tenant.Name, &tenant.WhatsAppPhone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrStaffNotFound
		}
		return nil, nil, err
	}
	return staff, tenant, nil
}
