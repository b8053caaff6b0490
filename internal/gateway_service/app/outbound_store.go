package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
	pgrepo "github.com/agendazap/notification-gateway/internal/gateway_service/repository/postgres"
)

// OutboundStore keeps sent message bodies retrievable for the network's
// resupply requests: a fast in-process tier backed by the durable repository.
// The memory tier is written synchronously before the send goes out; the
// durable mirror is written asynchronously.
type OutboundStore struct {
	repo   repository.OutboundMessageRepository
	logger *slog.Logger

	memTTL    time.Duration
	retention time.Duration

	mu      sync.RWMutex
	entries map[string]*outboundEntry // keyed by message id
}

type outboundEntry struct {
	body      string
	expiresAt time.Time
}

func NewOutboundStore(repo repository.OutboundMessageRepository, logger *slog.Logger, memTTL, retention time.Duration) *OutboundStore {
	return &OutboundStore{
		repo:      repo,
		logger:    logger.With("component", "outbound_store"),
		memTTL:    memTTL,
		retention: retention,
		entries:   make(map[string]*outboundEntry),
	}
}

// Put records the message body under its id. The memory write completes
// before Put returns; the network may ask for the message between the send
// being issued and its acknowledgment, so callers must Put before sending.
func (s *OutboundStore) Put(messageID, recipientAddress, body string) {
	now := time.Now()
	s.mu.Lock()
	s.entries[messageID] = &outboundEntry{
		body:      body,
		expiresAt: now.Add(s.memTTL),
	}
	outboundCacheGauge.Set(float64(len(s.entries)))
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rec := &domain.OutboundMessageRecord{
			MessageID:        messageID,
			RecipientAddress: recipientAddress,
			Body:             body,
			CreatedAt:        now.UTC(),
		}
		if err := s.repo.Create(ctx, rec); err != nil {
			s.logger.Error("failed to mirror outbound message", "message_id", messageID, "error", err)
		}
	}()
}

// Lookup resolves a resupply request. Message ids are unique, so the memory
// tier resolves by id alone; the recipient only narrows the durable query,
// with an id-only fallback because some protocol variants omit it.
func (s *OutboundStore) Lookup(messageID, recipientAddress string) (string, bool) {
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.entries[messageID]
	s.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.body, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	body, err := s.repo.GetBody(ctx, messageID, recipientAddress)
	if err != nil {
		if errors.Is(err, pgrepo.ErrOutboundMessageNotFound) && recipientAddress != "" {
			body, err = s.repo.GetBody(ctx, messageID, "")
		}
		if err != nil {
			if !errors.Is(err, pgrepo.ErrOutboundMessageNotFound) {
				s.logger.Error("durable resupply lookup failed", "message_id", messageID, "error", err)
			}
			return "", false
		}
	}
	return body, true
}

// RunJanitor sweeps expired memory entries and garbage-collects the durable
// mirror. Resupply requests only arrive shortly after the original send, so
// expired entries are safe to drop.
func (s *OutboundStore) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepMemory()
			cutoff := time.Now().UTC().Add(-s.retention)
			deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				s.logger.ErrorContext(ctx, "outbound mirror GC failed", "error", err)
				continue
			}
			if deleted > 0 {
				s.logger.InfoContext(ctx, "outbound mirror GC", "deleted", deleted, "cutoff", cutoff)
			}
		}
	}
}

func (s *OutboundStore) sweepMemory() {
	now := time.Now()
	s.mu.Lock()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
	outboundCacheGauge.Set(float64(len(s.entries)))
	s.mu.Unlock()
}
