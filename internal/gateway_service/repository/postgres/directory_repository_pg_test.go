package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantGetByID(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	repo := NewPgTenantRepository(mockDB)

	mockDB.ExpectQuery("FROM tenants WHERE id").
		WithArgs("tnt-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "whatsapp_phone"}).
			AddRow("tnt-1", "Barbearia Central", "5511900000000"))

	tenant, err := repo.GetByID(context.Background(), "tnt-1")
	require.NoError(t, err)
	assert.Equal(t, "Barbearia Central", tenant.Name)
	assert.Equal(t, "5511900000000", tenant.WhatsAppPhone)

	mockDB.ExpectQuery("FROM tenants WHERE id").
		WithArgs("tnt-missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "whatsapp_phone"}))

	_, err = repo.GetByID(context.Background(), "tnt-missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestStaffGetWithTenant(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	repo := NewPgStaffRepository(mockDB)

	mockDB.ExpectQuery("FROM staff s").
		WithArgs("stf-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "phone", "t_id", "t_name", "t_phone",
		}).AddRow("stf-1", "Ana Lima", "11998887766", "tnt-1", "Studio Norte", ""))

	staff, tenant, err := repo.GetWithTenant(context.Background(), "stf-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", staff.Name)
	assert.Equal(t, "11998887766", staff.Phone)
	assert.Equal(t, "Studio Norte", tenant.Name)

	mockDB.ExpectQuery("FROM staff s").
		WithArgs("stf-missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "phone", "t_id", "t_name", "t_phone",
		}))

	_, _, err = repo.GetWithTenant(context.Background(), "stf-missing")
	assert.ErrorIs(t, err, ErrStaffNotFound)

	assert.NoError(t, mockDB.ExpectationsWereMet())
}
