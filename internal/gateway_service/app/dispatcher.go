package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
)

// sender is the slice of the send pipeline the dispatcher uses.
type sender interface {
	Send(ctx context.Context, rawPhone, body string) (string, error)
}

// Dispatcher turns a domain event into the right set of outbound messages.
// It is the single place that renders, sends and records outcomes, so that
// duplicate triggers from the listener and the scanner are harmless.
type Dispatcher struct {
	bookings repository.BookingRepository
	tenants  repository.TenantRepository
	staff    repository.StaffRepository
	log      repository.NotificationLogRepository
	pipeline sender
	logger   *slog.Logger

	loc        *time.Location
	staffDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(
	bookings repository.BookingRepository,
	tenants repository.TenantRepository,
	staff repository.StaffRepository,
	log repository.NotificationLogRepository,
	pipeline sender,
	logger *slog.Logger,
	loc *time.Location,
	staffDelay time.Duration,
) *Dispatcher {
	return &Dispatcher{
		bookings:   bookings,
		tenants:    tenants,
		staff:      staff,
		log:        log,
		pipeline:   pipeline,
		logger:     logger.With("component", "dispatcher"),
		loc:        loc,
		staffDelay: staffDelay,
		sleep:      sleepCtx,
	}
}

// Dispatch sends the notification of the given kind for a booking. Kinds with
// idempotency (confirmation, reminder, cancellation) short-circuit when a
// sent record already exists; a reschedule must go through DispatchReschedule
// so the previous time is available.
func (d *Dispatcher) Dispatch(ctx context.Context, bookingID string, kind domain.NotificationKind) error {
	if kind == domain.KindReschedule {
		return fmt.Errorf("reschedule dispatch requires the previous start time")
	}
	return d.dispatchBooking(ctx, bookingID, kind, time.Time{})
}

// DispatchReschedule notifies an old→new time change. Never deduplicated: a
// booking can move repeatedly and every move must notify.
func (d *Dispatcher) DispatchReschedule(ctx context.Context, bookingID string, previousStart time.Time) error {
	return d.dispatchBooking(ctx, bookingID, domain.KindReschedule, previousStart)
}

func (d *Dispatcher) dispatchBooking(ctx context.Context, bookingID string, kind domain.NotificationKind, previousStart time.Time) error {
	logger := d.logger.With("booking_id", bookingID, "kind", kind)

	if kind.RequiresIdempotency() {
		sent, err := d.log.HasSent(ctx, bookingID, kind)
		if err != nil {
			return fmt.Errorf("idempotency check failed: %w", err)
		}
		if sent {
			logger.DebugContext(ctx, "notification already sent, skipping")
			dispatchCounter.WithLabelValues(string(kind), "deduplicated").Inc()
			return nil
		}
	}

	booking, err := d.bookings.GetWithDetails(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}

	var customerBody string
	switch kind {
	case domain.KindConfirmation:
		customerBody = RenderConfirmationCustomer(booking, d.loc)
	case domain.KindReminder:
		customerBody = RenderReminder(booking, d.loc)
	case domain.KindCancellation:
		customerBody = RenderCancellationCustomer(booking, d.loc)
	case domain.KindReschedule:
		customerBody = RenderReschedule(booking, d.loc, previousStart)
	default:
		return fmt.Errorf("unsupported booking notification kind %q", kind)
	}

	if booking.Customer.Phone == "" {
		// No address on file is not an error; nothing to deliver.
		logger.InfoContext(ctx, "customer has no phone on file, skipping")
		dispatchCounter.WithLabelValues(string(kind), "skipped_no_phone").Inc()
		return nil
	}

	rec := &domain.NotificationRecord{
		TenantID:     booking.TenantID,
		BookingID:    &booking.ID,
		Kind:         kind,
		Recipient:    booking.Customer.Phone,
		RenderedBody: customerBody,
	}

	_, sendErr := d.pipeline.Send(ctx, booking.Customer.Phone, customerBody)
	if sendErr != nil {
		logger.ErrorContext(ctx, "customer notification failed", "error", sendErr)
		detail := sendErr.Error()
		rec.Status = domain.NotificationStatusFailed
		rec.ErrorDetail = &detail
		d.record(ctx, logger, rec)
		dispatchCounter.WithLabelValues(string(kind), "failed").Inc()
		return sendErr
	}
	rec.Status = domain.NotificationStatusSent

	// The staff copy goes out only for confirmations, after a spacing delay:
	// two back-to-back sends to different recipients have been seen to
	// corrupt the second recipient's session.
	if kind == domain.KindConfirmation && booking.Staff.Phone != "" {
		if err := d.sleep(ctx, d.staffDelay); err == nil {
			staffBody := RenderConfirmationStaff(booking, d.loc)
			if _, staffErr := d.pipeline.Send(ctx, booking.Staff.Phone, staffBody); staffErr != nil {
				// The customer notification is the primary guarantee; the
				// staff failure lands in the record, not in the result.
				logger.WarnContext(ctx, "staff notification failed", "error", staffErr)
				detail := fmt.Sprintf("staff copy failed: %v", staffErr)
				rec.ErrorDetail = &detail
			}
		}
	}

	d.record(ctx, logger, rec)
	dispatchCounter.WithLabelValues(string(kind), "sent").Inc()
	logger.InfoContext(ctx, "notification dispatched")
	return nil
}

// DispatchTenantOnboarded sends the one-time "your shop is live" message when
// a tenant's outbound number first appears. Keyed by the tenant id.
func (d *Dispatcher) DispatchTenantOnboarded(ctx context.Context, tenantID string) error {
	logger := d.logger.With("tenant_id", tenantID, "kind", domain.KindTenantOnboarded)

	sent, err := d.log.HasSent(ctx, tenantID, domain.KindTenantOnboarded)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if sent {
		dispatchCounter.WithLabelValues(string(domain.KindTenantOnboarded), "deduplicated").Inc()
		return nil
	}

	tenant, err := d.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant.WhatsAppPhone == "" {
		logger.InfoContext(ctx, "tenant has no outbound number, skipping")
		return nil
	}

	body := RenderTenantOnboarded(tenant)
	return d.sendContactNotification(ctx, logger, tenantID, tenantID, domain.KindTenantOnboarded, tenant.WhatsAppPhone, body)
}

// DispatchStaffInvite welcomes a newly added staff member. Keyed by the
// staff id.
func (d *Dispatcher) DispatchStaffInvite(ctx context.Context, staffID string) error {
	logger := d.logger.With("staff_id", staffID, "kind", domain.KindStaffInvite)

	sent, err := d.log.HasSent(ctx, staffID, domain.KindStaffInvite)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if sent {
		dispatchCounter.WithLabelValues(string(domain.KindStaffInvite), "deduplicated").Inc()
		return nil
	}

	staff, tenant, err := d.staff.GetWithTenant(ctx, staffID)
	if err != nil {
		return fmt.Errorf("failed to load staff: %w", err)
	}
	if staff.Phone == "" {
		logger.InfoContext(ctx, "staff member has no phone on file, skipping")
		return nil
	}

	body := RenderStaffInvite(staff, tenant)
	return d.sendContactNotification(ctx, logger, tenant.ID, staffID, domain.KindStaffInvite, staff.Phone, body)
}

// sendContactNotification handles the onboarding kinds, which are keyed by a
// contact id rather than a booking id; the contact id occupies the record's
// booking slot so the (subject, kind) dedup query stays uniform.
func (d *Dispatcher) sendContactNotification(ctx context.Context, logger *slog.Logger, tenantID, subjectID string, kind domain.NotificationKind, phone, body string) error {
	rec := &domain.NotificationRecord{
		TenantID:     tenantID,
		BookingID:    &subjectID,
		Kind:         kind,
		Recipient:    phone,
		RenderedBody: body,
	}

	if _, err := d.pipeline.Send(ctx, phone, body); err != nil {
		logger.ErrorContext(ctx, "notification failed", "error", err)
		detail := err.Error()
		rec.Status = domain.NotificationStatusFailed
		rec.ErrorDetail = &detail
		d.record(ctx, logger, rec)
		dispatchCounter.WithLabelValues(string(kind), "failed").Inc()
		return err
	}

	rec.Status = domain.NotificationStatusSent
	d.record(ctx, logger, rec)
	dispatchCounter.WithLabelValues(string(kind), "sent").Inc()
	logger.InfoContext(ctx, "notification dispatched")
	return nil
}

func (d *Dispatcher) record(ctx context.Context, logger *slog.Logger, rec *domain.NotificationRecord) {
	if _, err := d.log.Create(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "failed to write notification record", "error", err)
	}
}
