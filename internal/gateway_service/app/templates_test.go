package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func sampleBooking() *domain.Booking {
	start := time.Date(2026, 9, 15, 17, 30, 0, 0, time.UTC) // 14:30 in São Paulo
	return &domain.Booking{
		ID:        "bkg-1",
		TenantID:  "tnt-1",
		Status:    domain.BookingStatusConfirmed,
		StartTime: start,
		Customer:  domain.Customer{ID: "cst-1", Name: "João Pereira", Phone: "+55 11 91234-5678"},
		Staff:     domain.Staff{ID: "stf-1", Name: "Carlos Souza", Phone: "11998887766"},
		Tenant:    domain.Tenant{ID: "tnt-1", Name: "Barbearia Central"},
		Services: []domain.ServiceItem{
			{ID: "svc-1", Name: "Corte", PriceCents: 4500, DurationMin: 40},
		},
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "R$ 45,00", formatMoney(4500))
	assert.Equal(t, "R$ 0,50", formatMoney(50))
	assert.Equal(t, "R$ 1.234,56", formatMoney(123456))
	assert.Equal(t, "R$ 1.000.000,00", formatMoney(100000000))
	assert.Equal(t, "-R$ 10,00", formatMoney(-1000))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "40 min", formatDuration(40))
	assert.Equal(t, "1h", formatDuration(60))
	assert.Equal(t, "1h30", formatDuration(90))
	assert.Equal(t, "2h05", formatDuration(125))
}

func TestRenderConfirmationCustomer(t *testing.T) {
	loc := saoPaulo(t)
	body := RenderConfirmationCustomer(sampleBooking(), loc)

	assert.Contains(t, body, "João")
	assert.Contains(t, body, "Barbearia Central")
	assert.Contains(t, body, "15/09/2026 às 14:30")
	assert.Contains(t, body, "Corte")
	assert.Contains(t, body, "Carlos Souza")
	assert.Contains(t, body, "40 min")
	assert.Contains(t, body, "R$ 45,00")
}

func TestRenderConfirmationAggregatesMultipleServices(t *testing.T) {
	loc := saoPaulo(t)
	b := sampleBooking()
	b.Services = append(b.Services, domain.ServiceItem{ID: "svc-2", Name: "Barba", PriceCents: 2550, DurationMin: 20})

	body := RenderConfirmationCustomer(b, loc)
	assert.Contains(t, body, "Corte, Barba")
	assert.Contains(t, body, "1h")         // 40 + 20 minutes
	assert.Contains(t, body, "R$ 70,50")   // 45,00 + 25,50

	staffBody := RenderConfirmationStaff(b, loc)
	assert.Contains(t, staffBody, "João Pereira")
	assert.Contains(t, staffBody, "R$ 70,50")
}

func TestRenderRescheduleShowsBothTimes(t *testing.T) {
	loc := saoPaulo(t)
	b := sampleBooking()
	previous := b.StartTime.Add(-24 * time.Hour)

	body := RenderReschedule(b, loc, previous)
	assert.Contains(t, body, "14/09/2026 às 14:30")
	assert.Contains(t, body, "15/09/2026 às 14:30")
}

func TestRenderOnboardingMessages(t *testing.T) {
	staff := &domain.Staff{Name: "Ana Lima"}
	tenant := &domain.Tenant{Name: "Studio Norte"}

	invite := RenderStaffInvite(staff, tenant)
	assert.Contains(t, invite, "Ana")
	assert.Contains(t, invite, "Studio Norte")

	welcome := RenderTenantOnboarded(tenant)
	assert.Contains(t, welcome, "Studio Norte")
}
