package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

// fakeDispatcher records dispatcher calls made by the listener and scanner.
type fakeDispatcher struct {
	mu          sync.Mutex
	dispatches  []struct {
		BookingID string
		Kind      domain.NotificationKind
	}
	reschedules []struct {
		BookingID     string
		PreviousStart time.Time
	}
	onboarded []string
	invited   []string
	err       error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, bookingID string, kind domain.NotificationKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.dispatches = append(f.dispatches, struct {
		BookingID string
		Kind      domain.NotificationKind
	}{bookingID, kind})
	return nil
}

func (f *fakeDispatcher) DispatchReschedule(ctx context.Context, bookingID string, previousStart time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reschedules = append(f.reschedules, struct {
		BookingID     string
		PreviousStart time.Time
	}{bookingID, previousStart})
	return nil
}

func (f *fakeDispatcher) DispatchTenantOnboarded(ctx context.Context, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onboarded = append(f.onboarded, tenantID)
	return nil
}

func (f *fakeDispatcher) DispatchStaffInvite(ctx context.Context, staffID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invited = append(f.invited, staffID)
	return nil
}

func newTestListener(d *fakeDispatcher) *EventListener {
	return NewEventListener(nil, d, discardLogger(), ListenerSubjects{
		BookingCreated: "bookings.created",
		BookingUpdated: "bookings.updated",
		TenantUpdated:  "tenants.updated",
		StaffCreated:   "staff.created",
		QueueGroup:     "notification_gateway",
	})
}

func TestBookingCreatedDispatchesConfirmation(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	payload := []byte(`{"id":"bkg-1","tenant_id":"tnt-1","status":"confirmed","start_time":"2026-09-15T17:30:00Z"}`)
	require.NoError(t, l.handleBookingCreated(context.Background(), payload))

	require.Len(t, d.dispatches, 1)
	assert.Equal(t, "bkg-1", d.dispatches[0].BookingID)
	assert.Equal(t, domain.KindConfirmation, d.dispatches[0].Kind)
}

func TestBookingCreatedPoisonMessageIsDropped(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	require.NoError(t, l.handleBookingCreated(context.Background(), []byte("not json")),
		"undecodable payloads are logged and dropped, not redelivered")
	assert.Empty(t, d.dispatches)
}

func TestBookingUpdatedCancellation(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	payload := []byte(`{
		"id": "bkg-1",
		"status": "cancelled",
		"start_time": "2026-09-15T17:30:00Z",
		"previous": {"status": "confirmed", "start_time": "2026-09-15T17:30:00Z"}
	}`)
	require.NoError(t, l.handleBookingUpdated(context.Background(), payload))

	require.Len(t, d.dispatches, 1)
	assert.Equal(t, domain.KindCancellation, d.dispatches[0].Kind)
	assert.Empty(t, d.reschedules)
}

func TestBookingUpdatedReschedule(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	payload := []byte(`{
		"id": "bkg-1",
		"status": "confirmed",
		"start_time": "2026-09-16T18:00:00Z",
		"previous": {"status": "confirmed", "start_time": "2026-09-15T17:30:00Z"}
	}`)
	require.NoError(t, l.handleBookingUpdated(context.Background(), payload))

	assert.Empty(t, d.dispatches)
	require.Len(t, d.reschedules, 1)
	assert.Equal(t, "bkg-1", d.reschedules[0].BookingID)
	assert.Equal(t, time.Date(2026, 9, 15, 17, 30, 0, 0, time.UTC), d.reschedules[0].PreviousStart.UTC())
}

func TestBookingUpdatedCancelledMoveDoesNotReschedule(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	// Cancellation that also carries a time change: the cancellation wins,
	// nobody needs a reschedule notice for an appointment that no longer exists.
	payload := []byte(`{
		"id": "bkg-1",
		"status": "cancelled",
		"start_time": "2026-09-16T18:00:00Z",
		"previous": {"status": "confirmed", "start_time": "2026-09-15T17:30:00Z"}
	}`)
	require.NoError(t, l.handleBookingUpdated(context.Background(), payload))

	require.Len(t, d.dispatches, 1)
	assert.Equal(t, domain.KindCancellation, d.dispatches[0].Kind)
	assert.Empty(t, d.reschedules)
}

func TestBookingUpdatedIrrelevantChangeIsIgnored(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	payload := []byte(`{
		"id": "bkg-1",
		"status": "confirmed",
		"start_time": "2026-09-15T17:30:00Z",
		"previous": {"status": "pending", "start_time": "2026-09-15T17:30:00Z"}
	}`)
	require.NoError(t, l.handleBookingUpdated(context.Background(), payload))
	assert.Empty(t, d.dispatches)
	assert.Empty(t, d.reschedules)
}

func TestBookingUpdatedWithoutPreviousImageIsIgnored(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	payload := []byte(`{"id":"bkg-1","status":"cancelled","start_time":"2026-09-15T17:30:00Z"}`)
	require.NoError(t, l.handleBookingUpdated(context.Background(), payload))
	assert.Empty(t, d.dispatches)
}

func TestTenantUpdatedOnboardsOnlyWhenNumberAppears(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	// Number absent → present: onboarding.
	appeared := []byte(`{"id":"tnt-1","whatsapp_phone":"5511912345678","previous":{"whatsapp_phone":""}}`)
	require.NoError(t, l.handleTenantUpdated(context.Background(), appeared))
	assert.Equal(t, []string{"tnt-1"}, d.onboarded)

	// Number changed but was already present: not an onboarding.
	changed := []byte(`{"id":"tnt-1","whatsapp_phone":"5511900000000","previous":{"whatsapp_phone":"5511912345678"}}`)
	require.NoError(t, l.handleTenantUpdated(context.Background(), changed))
	assert.Len(t, d.onboarded, 1)

	// Number still absent: nothing.
	absent := []byte(`{"id":"tnt-2","whatsapp_phone":"","previous":{"whatsapp_phone":""}}`)
	require.NoError(t, l.handleTenantUpdated(context.Background(), absent))
	assert.Len(t, d.onboarded, 1)
}

func TestStaffCreatedDispatchesInvite(t *testing.T) {
	d := &fakeDispatcher{}
	l := newTestListener(d)

	require.NoError(t, l.handleStaffCreated(context.Background(), []byte(`{"id":"stf-9"}`)))
	assert.Equal(t, []string{"stf-9"}, d.invited)
}
