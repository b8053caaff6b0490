package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

func TestBookingGetWithDetails(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	start := time.Date(2026, 9, 15, 17, 30, 0, 0, time.UTC)
	mockDB.ExpectQuery("FROM bookings b").
		WithArgs("bkg-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "status", "start_time",
			"c_id", "c_name", "c_phone",
			"s_id", "s_name", "s_phone",
			"t_id", "t_name", "t_phone",
		}).AddRow(
			"bkg-1", "tnt-1", domain.BookingStatusConfirmed, start,
			"cst-1", "João Pereira", "+55 11 91234-5678",
			"stf-1", "Carlos Souza", "11998887766",
			"tnt-1", "Barbearia Central", "5511900000000",
		))
	mockDB.ExpectQuery("FROM booking_services bs").
		WithArgs("bkg-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price_cents", "duration_min"}).
			AddRow("svc-2", "Barba", int64(2550), 20).
			AddRow("svc-1", "Corte", int64(4500), 40))

	repo := NewPgBookingRepository(mockDB)
	booking, err := repo.GetWithDetails(context.Background(), "bkg-1")
	require.NoError(t, err)

	assert.Equal(t, "bkg-1", booking.ID)
	assert.Equal(t, domain.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, "João Pereira", booking.Customer.Name)
	assert.Equal(t, "+55 11 91234-5678", booking.Customer.Phone)
	assert.Equal(t, "Carlos Souza", booking.Staff.Name)
	assert.Equal(t, "Barbearia Central", booking.Tenant.Name)
	require.Len(t, booking.Services, 2)
	assert.EqualValues(t, 7050, booking.TotalPriceCents())
	assert.Equal(t, 60, booking.TotalDurationMin())

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestBookingGetWithDetailsNotFound(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	mockDB.ExpectQuery("FROM bookings b").
		WithArgs("bkg-missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "status", "start_time",
			"c_id", "c_name", "c_phone",
			"s_id", "s_name", "s_phone",
			"t_id", "t_name", "t_phone",
		}))

	repo := NewPgBookingRepository(mockDB)
	_, err = repo.GetWithDetails(context.Background(), "bkg-missing")
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestBookingFindStartingBetween(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	from := time.Date(2026, 9, 15, 11, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	// The window is half-open and only pending/confirmed bookings qualify;
	// cancelled and completed ones must never receive a reminder.
	mockDB.ExpectQuery("WHERE start_time >= \\$1 AND start_time < \\$2").
		WithArgs(from, to, domain.BookingStatusPending, domain.BookingStatusConfirmed).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "status", "start_time"}).
			AddRow("bkg-1", "tnt-1", domain.BookingStatusConfirmed, from.Add(10*time.Minute)).
			AddRow("bkg-2", "tnt-1", domain.BookingStatusPending, from.Add(30*time.Minute)))

	repo := NewPgBookingRepository(mockDB)
	bookings, err := repo.FindStartingBetween(context.Background(), from, to)
	require.NoError(t, err)

	require.Len(t, bookings, 2)
	assert.Equal(t, "bkg-1", bookings[0].ID)
	assert.Equal(t, "bkg-2", bookings[1].ID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestBookingFindStartingBetweenEmpty(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	from := time.Date(2026, 9, 15, 11, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	mockDB.ExpectQuery("WHERE start_time >= \\$1 AND start_time < \\$2").
		WithArgs(from, to, domain.BookingStatusPending, domain.BookingStatusConfirmed).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "status", "start_time"}))

	repo := NewPgBookingRepository(mockDB)
	bookings, err := repo.FindStartingBetween(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
