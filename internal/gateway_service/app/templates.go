package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

// Message rendering. Pure functions: everything is rendered fully before any
// send attempt, so a recipient either gets a complete message or nothing.
// Copy is pt-BR; dates are shown in the gateway's configured timezone.

func RenderConfirmationCustomer(b *domain.Booking, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Olá, %s! Seu agendamento na %s foi confirmado. ✅\n\n", firstName(b.Customer.Name), b.Tenant.Name)
	fmt.Fprintf(&sb, "🗓 %s\n", formatTime(b.StartTime, loc))
	fmt.Fprintf(&sb, "💈 %s\n", b.ServiceNames())
	fmt.Fprintf(&sb, "👤 Profissional: %s\n", b.Staff.Name)
	fmt.Fprintf(&sb, "⏱ Duração: %s\n", formatDuration(b.TotalDurationMin()))
	fmt.Fprintf(&sb, "💰 Valor: %s\n\n", formatMoney(b.TotalPriceCents()))
	sb.WriteString("Até lá!")
	return sb.String()
}

func RenderConfirmationStaff(b *domain.Booking, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Novo agendamento confirmado! 📋\n\n")
	fmt.Fprintf(&sb, "Cliente: %s\n", b.Customer.Name)
	fmt.Fprintf(&sb, "🗓 %s\n", formatTime(b.StartTime, loc))
	fmt.Fprintf(&sb, "💈 %s (%s)\n", b.ServiceNames(), formatDuration(b.TotalDurationMin()))
	fmt.Fprintf(&sb, "💰 %s", formatMoney(b.TotalPriceCents()))
	return sb.String()
}

func RenderReminder(b *domain.Booking, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Oi, %s! Passando para lembrar do seu horário na %s hoje. ⏰\n\n", firstName(b.Customer.Name), b.Tenant.Name)
	fmt.Fprintf(&sb, "🗓 %s\n", formatTime(b.StartTime, loc))
	fmt.Fprintf(&sb, "💈 %s com %s\n\n", b.ServiceNames(), b.Staff.Name)
	sb.WriteString("Se precisar remarcar, é só avisar. Até já!")
	return sb.String()
}

func RenderCancellationCustomer(b *domain.Booking, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Olá, %s. Seu agendamento na %s foi cancelado. ❌\n\n", firstName(b.Customer.Name), b.Tenant.Name)
	fmt.Fprintf(&sb, "🗓 %s\n", formatTime(b.StartTime, loc))
	fmt.Fprintf(&sb, "💈 %s\n\n", b.ServiceNames())
	sb.WriteString("Quando quiser, agende um novo horário. 😉")
	return sb.String()
}

func RenderReschedule(b *domain.Booking, loc *time.Location, previousStart time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Olá, %s! Seu horário na %s foi remarcado. 🔁\n\n", firstName(b.Customer.Name), b.Tenant.Name)
	fmt.Fprintf(&sb, "Antes: %s\n", formatTime(previousStart, loc))
	fmt.Fprintf(&sb, "Agora: %s\n\n", formatTime(b.StartTime, loc))
	fmt.Fprintf(&sb, "💈 %s com %s\n\n", b.ServiceNames(), b.Staff.Name)
	sb.WriteString("Qualquer coisa, estamos por aqui!")
	return sb.String()
}

func RenderStaffInvite(staff *domain.Staff, tenant *domain.Tenant) string {
	return fmt.Sprintf(
		"Olá, %s! Você foi adicionado à equipe da %s. 💈\n\nA partir de agora você vai receber por aqui os avisos dos seus agendamentos.",
		firstName(staff.Name), tenant.Name,
	)
}

func RenderTenantOnboarded(tenant *domain.Tenant) string {
	return fmt.Sprintf(
		"Parabéns, %s! 🎉 Sua agenda está no ar e seus clientes já podem agendar online.\n\nAs confirmações e lembretes serão enviados automaticamente por este número.",
		tenant.Name,
	)
}

// formatMoney renders cents as Brazilian currency, e.g. 123456 -> "R$ 1.234,56".
func formatMoney(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}
	reais := cents / 100
	rest := cents % 100

	digits := fmt.Sprintf("%d", reais)
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), rest)
}

// formatTime renders "25/12/2026 às 14:30" in the given location.
func formatTime(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return local.Format("02/01/2006") + " às " + local.Format("15:04")
}

func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	h := minutes / 60
	m := minutes % 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%02d", h, m)
}

func firstName(full string) string {
	full = strings.TrimSpace(full)
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}
