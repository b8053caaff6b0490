package domain

import (
	"strings"
	"time"
)

// NotificationKind identifies what a notification is about. Together with the
// booking ID it forms the deduplication key for the notification log.
type NotificationKind string

const (
	KindConfirmation    NotificationKind = "confirmation"
	KindReminder        NotificationKind = "reminder"
	KindCancellation    NotificationKind = "cancellation"
	KindReschedule      NotificationKind = "reschedule"
	KindStaffInvite     NotificationKind = "staff_invite"
	KindTenantOnboarded NotificationKind = "tenant_onboarded"
)

// RequiresIdempotency reports whether a kind must be suppressed once a sent
// record exists. Reschedules are deliberately excluded: a booking can move
// several times and each move must notify.
func (k NotificationKind) RequiresIdempotency() bool {
	switch k {
	case KindConfirmation, KindReminder, KindCancellation:
		return true
	}
	return false
}

type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// NotificationRecord is one row of the append-only notification log.
type NotificationRecord struct {
	ID           string
	TenantID     string
	BookingID    *string // nil for tenant/staff onboarding kinds
	Kind         NotificationKind
	Status       NotificationStatus
	Recipient    string
	RenderedBody string
	ErrorDetail  *string
	SentAt       time.Time
}

// OutboundMessageRecord mirrors a sent message body so the messaging network
// can ask for it again (resupply) shortly after the original send.
type OutboundMessageRecord struct {
	MessageID        string
	RecipientAddress string
	Body             string
	CreatedAt        time.Time
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// ServiceItem is one service line attached to a booking.
type ServiceItem struct {
	ID          string
	Name        string
	PriceCents  int64
	DurationMin int
}

type Customer struct {
	ID    string
	Name  string
	Phone string // raw, as entered; empty means no address on file
}

type Staff struct {
	ID    string
	Name  string
	Phone string
}

type Tenant struct {
	ID            string
	Name          string
	WhatsAppPhone string
}

// Booking is the read-only projection of a booking with everything the
// dispatcher needs to render a message.
type Booking struct {
	ID        string
	TenantID  string
	Status    BookingStatus
	StartTime time.Time
	Customer  Customer
	Staff     Staff
	Tenant    Tenant
	Services  []ServiceItem
}

// TotalPriceCents sums the price over all service lines.
func (b *Booking) TotalPriceCents() int64 {
	var total int64
	for _, s := range b.Services {
		total += s.PriceCents
	}
	return total
}

// TotalDurationMin sums the duration over all service lines.
func (b *Booking) TotalDurationMin() int {
	var total int
	for _, s := range b.Services {
		total += s.DurationMin
	}
	return total
}

// ServiceNames joins the service names for display, e.g. "Corte, Barba".
func (b *Booking) ServiceNames() string {
	names := make([]string, 0, len(b.Services))
	for _, s := range b.Services {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}
