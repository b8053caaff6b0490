package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

func testScannerConfig() ScannerConfig {
	return ScannerConfig{
		Interval:        15 * time.Minute,
		WindowStartHour: 8,
		WindowEndHour:   22,
		LookaheadMin:    60 * time.Minute,
		LookaheadMax:    120 * time.Minute,
		DispatchGap:     2 * time.Second,
	}
}

type scannerFixture struct {
	bookings   *MockBookingRepository
	log        *memNotificationLog
	dispatcher *fakeDispatcher
	scanner    *ReminderScanner
	sleeps     *[]time.Duration
}

func newScannerFixture(t *testing.T, localNow time.Time) *scannerFixture {
	t.Helper()
	f := &scannerFixture{
		bookings:   new(MockBookingRepository),
		log:        &memNotificationLog{},
		dispatcher: &fakeDispatcher{},
		sleeps:     &[]time.Duration{},
	}
	f.scanner = NewReminderScanner(f.bookings, f.log, f.dispatcher, discardLogger(), saoPaulo(t), testScannerConfig())
	f.scanner.now = func() time.Time { return localNow }
	var mu sync.Mutex
	f.scanner.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*f.sleeps = append(*f.sleeps, d)
		mu.Unlock()
		return ctx.Err()
	}
	return f
}

// saoPauloTime builds an instant from wall-clock time in São Paulo.
func saoPauloTime(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 9, 15, hour, min, 0, 0, saoPaulo(t))
}

func TestScanSkipsDuringDoNotDisturbWindow(t *testing.T) {
	f := newScannerFixture(t, saoPauloTime(t, 23, 0))

	assert.Zero(t, f.scanner.scan(context.Background()))
	f.bookings.AssertNotCalled(t, "FindStartingBetween", mock.Anything, mock.Anything, mock.Anything)
}

func TestScanSkipsBeforeWindowOpens(t *testing.T) {
	f := newScannerFixture(t, saoPauloTime(t, 7, 59))

	assert.Zero(t, f.scanner.scan(context.Background()))
	f.bookings.AssertNotCalled(t, "FindStartingBetween", mock.Anything, mock.Anything, mock.Anything)
}

func TestScanQueriesTheLookaheadWindow(t *testing.T) {
	now := saoPauloTime(t, 10, 0)
	f := newScannerFixture(t, now)
	f.bookings.On("FindStartingBetween", mock.Anything, now.Add(60*time.Minute), now.Add(120*time.Minute)).
		Return([]*domain.Booking{}, nil)

	assert.Zero(t, f.scanner.scan(context.Background()))
	f.bookings.AssertExpectations(t)
}

func TestScanDispatchesRemindersWithSpacing(t *testing.T) {
	now := saoPauloTime(t, 10, 0)
	f := newScannerFixture(t, now)

	b1 := sampleBooking()
	b2 := sampleBooking()
	b2.ID = "bkg-2"
	f.bookings.On("FindStartingBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.Booking{b1, b2}, nil)

	assert.Equal(t, 2, f.scanner.scan(context.Background()))

	require.Len(t, f.dispatcher.dispatches, 2)
	assert.Equal(t, domain.KindReminder, f.dispatcher.dispatches[0].Kind)
	assert.Equal(t, "bkg-1", f.dispatcher.dispatches[0].BookingID)
	assert.Equal(t, "bkg-2", f.dispatcher.dispatches[1].BookingID)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *f.sleeps)
}

func TestScanSkipsBookingsWithReminderAlreadySent(t *testing.T) {
	now := saoPauloTime(t, 10, 0)
	f := newScannerFixture(t, now)

	booking := sampleBooking()
	f.bookings.On("FindStartingBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.Booking{booking}, nil)

	bookingID := booking.ID
	_, err := f.log.Create(context.Background(), &domain.NotificationRecord{
		BookingID: &bookingID,
		Kind:      domain.KindReminder,
		Status:    domain.NotificationStatusSent,
	})
	require.NoError(t, err)

	assert.Zero(t, f.scanner.scan(context.Background()))
	assert.Empty(t, f.dispatcher.dispatches)
}

func TestScanContinuesPastDispatchFailures(t *testing.T) {
	now := saoPauloTime(t, 10, 0)
	f := newScannerFixture(t, now)
	f.dispatcher.err = domain.ErrNotConnected

	f.bookings.On("FindStartingBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.Booking{sampleBooking()}, nil)

	// A failed dispatch is logged and skipped; the next scan retries because
	// no sent record exists.
	assert.Zero(t, f.scanner.scan(context.Background()))

	f.dispatcher.err = nil
	assert.Equal(t, 1, f.scanner.scan(context.Background()))
}

func TestScanRunsAtWindowEdges(t *testing.T) {
	// 08:00 is inside the window, 22:00 is not.
	open := newScannerFixture(t, saoPauloTime(t, 8, 0))
	open.bookings.On("FindStartingBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.Booking{}, nil)
	open.scanner.scan(context.Background())
	open.bookings.AssertCalled(t, "FindStartingBetween", mock.Anything, mock.Anything, mock.Anything)

	closed := newScannerFixture(t, saoPauloTime(t, 22, 0))
	closed.scanner.scan(context.Background())
	closed.bookings.AssertNotCalled(t, "FindStartingBetween", mock.Anything, mock.Anything, mock.Anything)
}
