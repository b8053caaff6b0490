package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

// connectionSender is the slice of the connection manager the pipeline needs.
type connectionSender interface {
	Send(ctx context.Context, messageID, address, body string) error
	RepairSession(ctx context.Context, address string) error
	IsConnected() bool
}

// PipelineConfig tunes the outbound send pipeline.
type PipelineConfig struct {
	MinGap      time.Duration // global minimum delay between any two sends
	MaxAttempts int
}

// SendPipeline is the single allowed path to the wire send primitive. It
// normalizes the recipient, enforces the global inter-send gap, persists the
// body before the send goes out, and retries transient failures with
// per-class backoff.
type SendPipeline struct {
	conn   connectionSender
	store  *OutboundStore
	logger *slog.Logger
	cfg    PipelineConfig

	gateMu   sync.Mutex
	lastSend time.Time

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSendPipeline(conn connectionSender, store *OutboundStore, logger *slog.Logger, cfg PipelineConfig) *SendPipeline {
	return &SendPipeline{
		conn:   conn,
		store:  store,
		logger: logger.With("component", "send_pipeline"),
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers body to the raw phone number and returns the message id.
// Errors are returned, never raised: exhausted retries yield the last
// classified error.
func (p *SendPipeline) Send(ctx context.Context, rawPhone, body string) (string, error) {
	start := p.now()

	if !p.conn.IsConnected() {
		sendAttemptsCounter.WithLabelValues("not_connected").Inc()
		return "", domain.ErrNotConnected
	}

	canonical, err := domain.NormalizePhone(rawPhone)
	if err != nil {
		sendAttemptsCounter.WithLabelValues("invalid_recipient").Inc()
		return "", err
	}
	address := domain.WireAddress(canonical)

	// Sends are fully serialized here: the gate is what keeps the global
	// minimum inter-send spacing honest across concurrent dispatchers.
	p.gateMu.Lock()
	defer p.gateMu.Unlock()

	if wait := p.cfg.MinGap - p.now().Sub(p.lastSend); wait > 0 {
		if err := p.sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	messageID := uuid.NewString()
	// Stored before the send is issued: the network may request a resupply
	// before the acknowledgment comes back.
	p.store.Put(messageID, address, body)

	var lastErr error
	repaired := false
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		lastErr = p.conn.Send(ctx, messageID, address, body)
		if lastErr == nil {
			p.lastSend = p.now()
			sendAttemptsCounter.WithLabelValues("success").Inc()
			sendDurationHist.WithLabelValues("success").Observe(p.now().Sub(start).Seconds())
			return messageID, nil
		}

		switch {
		case errors.Is(lastErr, domain.ErrNotConnected), errors.Is(lastErr, domain.ErrLoggedOut):
			// Nothing a send-level retry can do; the connection manager owns
			// recovery from here.
			sendAttemptsCounter.WithLabelValues("not_connected").Inc()
			return "", lastErr

		case errors.Is(lastErr, domain.ErrSessionDesync):
			sendAttemptsCounter.WithLabelValues("session_desync").Inc()
			if repaired {
				// Repair already attempted once for this message; a second
				// desync is surfaced to the caller.
				sendDurationHist.WithLabelValues("failed").Observe(p.now().Sub(start).Seconds())
				return "", lastErr
			}
			repaired = true
			p.logger.WarnContext(ctx, "session desync, repairing recipient session", "address", address)
			if repairErr := p.conn.RepairSession(ctx, address); repairErr != nil {
				p.logger.ErrorContext(ctx, "session repair failed", "address", address, "error", repairErr)
			}

		case errors.Is(lastErr, domain.ErrRateLimited):
			sendAttemptsCounter.WithLabelValues("rate_limited").Inc()
			if attempt < p.cfg.MaxAttempts {
				wait := 10*time.Second + time.Duration(attempt)*5*time.Second
				p.logger.WarnContext(ctx, "rate limited, extended backoff", "attempt", attempt, "wait", wait)
				if err := p.sleep(ctx, wait); err != nil {
					return "", err
				}
			}

		default:
			sendAttemptsCounter.WithLabelValues("transient").Inc()
			if attempt < p.cfg.MaxAttempts {
				wait := time.Duration(attempt) * 3 * time.Second
				if wait > 15*time.Second {
					wait = 15 * time.Second
				}
				p.logger.WarnContext(ctx, "send failed, retrying", "attempt", attempt, "wait", wait, "error", lastErr)
				if err := p.sleep(ctx, wait); err != nil {
					return "", err
				}
			}
		}
	}

	sendDurationHist.WithLabelValues("failed").Observe(p.now().Sub(start).Seconds())
	return "", fmt.Errorf("send to %s failed after %d attempts: %w", address, p.cfg.MaxAttempts, lastErr)
}
