package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
)

// ScannerConfig tunes the reminder scanner.
type ScannerConfig struct {
	Interval        time.Duration // poll period
	WindowStartHour int           // do-not-disturb window: scans run in [start, end)
	WindowEndHour   int
	LookaheadMin    time.Duration // bookings starting in [now+min, now+max)
	LookaheadMax    time.Duration
	DispatchGap     time.Duration // pause between bookings in one scan
}

// ReminderScanner periodically finds bookings about to start and dispatches
// reminders for the ones that have none recorded. The lookahead window is
// wider than the poll period on purpose: with a 15-minute poll, a 60–120
// minute window cannot skip past any booking's reminder slot.
type ReminderScanner struct {
	bookings   repository.BookingRepository
	log        repository.NotificationLogRepository
	dispatcher dispatching
	logger     *slog.Logger
	loc        *time.Location
	cfg        ScannerConfig

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReminderScanner(
	bookings repository.BookingRepository,
	log repository.NotificationLogRepository,
	dispatcher dispatching,
	logger *slog.Logger,
	loc *time.Location,
	cfg ScannerConfig,
) *ReminderScanner {
	return &ReminderScanner{
		bookings:   bookings,
		log:        log,
		dispatcher: dispatcher,
		logger:     logger.With("component", "reminder_scanner"),
		loc:        loc,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Run scans once immediately, then on every tick until ctx is cancelled.
func (s *ReminderScanner) Run(ctx context.Context) error {
	s.scan(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// scan runs one reminder pass and returns how many reminders it dispatched.
func (s *ReminderScanner) scan(ctx context.Context) int {
	now := s.now()

	local := now.In(s.loc)
	if local.Hour() < s.cfg.WindowStartHour || local.Hour() >= s.cfg.WindowEndHour {
		s.logger.DebugContext(ctx, "outside notification window, skipping scan", "local_hour", local.Hour())
		reminderScanCounter.WithLabelValues("skipped_window").Inc()
		return 0
	}

	from := now.Add(s.cfg.LookaheadMin)
	to := now.Add(s.cfg.LookaheadMax)
	bookings, err := s.bookings.FindStartingBetween(ctx, from, to)
	if err != nil {
		s.logger.ErrorContext(ctx, "reminder query failed", "error", err)
		reminderScanCounter.WithLabelValues("error").Inc()
		return 0
	}
	if len(bookings) == 0 {
		reminderScanCounter.WithLabelValues("empty").Inc()
		return 0
	}

	dispatched := 0
	for _, booking := range bookings {
		if ctx.Err() != nil {
			break
		}

		sent, err := s.log.HasSent(ctx, booking.ID, domain.KindReminder)
		if err != nil {
			s.logger.ErrorContext(ctx, "reminder dedup check failed", "booking_id", booking.ID, "error", err)
			continue
		}
		if sent {
			continue
		}

		if err := s.dispatcher.Dispatch(ctx, booking.ID, domain.KindReminder); err != nil {
			s.logger.ErrorContext(ctx, "reminder dispatch failed", "booking_id", booking.ID, "error", err)
			continue
		}
		dispatched++

		// Spacing between bookings keeps one scan from hammering the
		// pipeline's global rate gate.
		if err := s.sleep(ctx, s.cfg.DispatchGap); err != nil {
			break
		}
	}

	if dispatched > 0 {
		s.logger.InfoContext(ctx, "reminder scan complete", "candidates", len(bookings), "dispatched", dispatched)
		reminderScanCounter.WithLabelValues("dispatched").Inc()
	}
	return dispatched
}
