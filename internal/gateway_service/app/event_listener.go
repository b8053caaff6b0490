package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/platform/messagebroker"
)

// dispatching is the slice of the Dispatcher the listener and scanner need.
type dispatching interface {
	Dispatch(ctx context.Context, bookingID string, kind domain.NotificationKind) error
	DispatchReschedule(ctx context.Context, bookingID string, previousStart time.Time) error
	DispatchTenantOnboarded(ctx context.Context, tenantID string) error
	DispatchStaffInvite(ctx context.Context, staffID string) error
}

// BookingSnapshot is the pre-update image carried on update events.
type BookingSnapshot struct {
	Status    domain.BookingStatus `json:"status"`
	StartTime time.Time            `json:"start_time"`
}

// BookingChangeEvent is the change-feed payload for booking inserts/updates.
type BookingChangeEvent struct {
	ID        string               `json:"id"`
	TenantID  string               `json:"tenant_id"`
	Status    domain.BookingStatus `json:"status"`
	StartTime time.Time            `json:"start_time"`
	Previous  *BookingSnapshot     `json:"previous,omitempty"`
}

// TenantChangeEvent is the change-feed payload for tenant updates.
type TenantChangeEvent struct {
	ID       string `json:"id"`
	Phone    string `json:"whatsapp_phone"`
	Previous *struct {
		Phone string `json:"whatsapp_phone"`
	} `json:"previous,omitempty"`
}

// StaffChangeEvent is the change-feed payload for staff inserts.
type StaffChangeEvent struct {
	ID string `json:"id"`
}

// ListenerSubjects names the change-feed subjects the listener consumes.
type ListenerSubjects struct {
	BookingCreated string
	BookingUpdated string
	TenantUpdated  string
	StaffCreated   string
	QueueGroup     string
}

// EventListener consumes the record change feed and classifies each change
// into dispatcher calls. Feed delivery is at-least-once; the dispatcher's
// idempotency makes redelivery harmless. Reconnection/resubscription belongs
// to the broker client; we only log health transitions.
type EventListener struct {
	broker     *messagebroker.NATSClient
	dispatcher dispatching
	logger     *slog.Logger
	subjects   ListenerSubjects
	subs       []*nats.Subscription
}

func NewEventListener(broker *messagebroker.NATSClient, dispatcher dispatching, logger *slog.Logger, subjects ListenerSubjects) *EventListener {
	return &EventListener{
		broker:     broker,
		dispatcher: dispatcher,
		logger:     logger.With("component", "event_listener"),
		subjects:   subjects,
	}
}

// Start subscribes to all watched subjects. Handlers run on the broker
// client's delivery goroutines; each gets its own bounded context.
func (l *EventListener) Start(ctx context.Context) error {
	subscribe := func(subject string, handler nats.MsgHandler) error {
		if subject == "" {
			return nil
		}
		sub, err := l.broker.Subscribe(subject, l.subjects.QueueGroup, handler)
		if err != nil {
			return err
		}
		l.subs = append(l.subs, sub)
		return nil
	}

	if err := subscribe(l.subjects.BookingCreated, l.onMessage(l.handleBookingCreated)); err != nil {
		return err
	}
	if err := subscribe(l.subjects.BookingUpdated, l.onMessage(l.handleBookingUpdated)); err != nil {
		return err
	}
	if err := subscribe(l.subjects.TenantUpdated, l.onMessage(l.handleTenantUpdated)); err != nil {
		return err
	}
	if err := subscribe(l.subjects.StaffCreated, l.onMessage(l.handleStaffCreated)); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "change feed subscriptions established")
	return nil
}

// Stop drains the subscriptions.
func (l *EventListener) Stop() {
	for _, sub := range l.subs {
		if err := sub.Drain(); err != nil {
			l.logger.Warn("failed to drain subscription", "subject", sub.Subject, "error", err)
		}
	}
}

func (l *EventListener) onMessage(handle func(ctx context.Context, data []byte) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := handle(ctx, msg.Data); err != nil {
			l.logger.ErrorContext(ctx, "failed to process change event", "subject", msg.Subject, "error", err)
		}
	}
}

func (l *EventListener) handleBookingCreated(ctx context.Context, data []byte) error {
	var ev BookingChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		l.logger.ErrorContext(ctx, "undecodable booking created event", "error", err, "data", string(data))
		return nil // poison message, do not reprocess
	}
	l.logger.InfoContext(ctx, "booking created", "booking_id", ev.ID)
	return l.dispatcher.Dispatch(ctx, ev.ID, domain.KindConfirmation)
}

func (l *EventListener) handleBookingUpdated(ctx context.Context, data []byte) error {
	var ev BookingChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		l.logger.ErrorContext(ctx, "undecodable booking updated event", "error", err, "data", string(data))
		return nil
	}
	if ev.Previous == nil {
		l.logger.WarnContext(ctx, "booking update without previous image, ignoring", "booking_id", ev.ID)
		return nil
	}

	var firstErr error

	// Both notifications can fire on one update; they are independent.
	if ev.Status == domain.BookingStatusCancelled && ev.Previous.Status != domain.BookingStatusCancelled {
		l.logger.InfoContext(ctx, "booking cancelled", "booking_id", ev.ID)
		if err := l.dispatcher.Dispatch(ctx, ev.ID, domain.KindCancellation); err != nil {
			firstErr = err
		}
	}

	if !ev.StartTime.Equal(ev.Previous.StartTime) && ev.Status != domain.BookingStatusCancelled {
		l.logger.InfoContext(ctx, "booking rescheduled", "booking_id", ev.ID,
			"from", ev.Previous.StartTime, "to", ev.StartTime)
		if err := l.dispatcher.DispatchReschedule(ctx, ev.ID, ev.Previous.StartTime); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (l *EventListener) handleTenantUpdated(ctx context.Context, data []byte) error {
	var ev TenantChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		l.logger.ErrorContext(ctx, "undecodable tenant updated event", "error", err, "data", string(data))
		return nil
	}
	if ev.Phone == "" {
		return nil
	}
	if ev.Previous != nil && ev.Previous.Phone != "" {
		return nil // number was already present, not an onboarding
	}
	l.logger.InfoContext(ctx, "tenant outbound number registered", "tenant_id", ev.ID)
	return l.dispatcher.DispatchTenantOnboarded(ctx, ev.ID)
}

func (l *EventListener) handleStaffCreated(ctx context.Context, data []byte) error {
	var ev StaffChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		l.logger.ErrorContext(ctx, "undecodable staff created event", "error", err, "data", string(data))
		return nil
	}
	return l.dispatcher.DispatchStaffInvite(ctx, ev.ID)
}
