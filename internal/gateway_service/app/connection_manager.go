package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/agendazap/notification-gateway/internal/gateway_service/adapters/wire"
	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
)

// ConnState is the connection manager's externally visible state.
type ConnState string

const (
	StateDisconnected    ConnState = "disconnected"
	StateConnecting      ConnState = "connecting"
	StateAwaitingPairing ConnState = "awaiting_pairing"
	StateConnected       ConnState = "connected"
	StateLoggedOut       ConnState = "logged_out"
)

// ManagerConfig carries the reconnection tuning.
type ManagerConfig struct {
	BaseDelay    time.Duration // first transient reconnect delay (doubles per attempt)
	MaxDelay     time.Duration // exponential backoff cap
	MaxJitter    time.Duration // random addition per scheduled reconnect
	MaxAttempts  int           // transient attempts before requiring an operator restart
	RestartDelay time.Duration // fixed delay after logout or administrative restart
}

type managerCommand int

const (
	cmdRestart managerCommand = iota
	cmdDisconnect
	cmdForceNewPairing
)

// ConnectionManager owns the single messaging session: pairing, reconnection
// with backoff, and the send entry point. All session state is mutated by one
// actor goroutine fed by wire events and administrative commands; the public
// accessors only read snapshot fields.
type ConnectionManager struct {
	client wire.Client
	creds  repository.SessionCredentialRepository
	store  *OutboundStore
	logger *slog.Logger
	cfg    ManagerConfig

	events   chan wire.Event
	commands chan managerCommand

	mu          sync.RWMutex
	state       ConnState
	pairingCode string
	attempts    int
}

func NewConnectionManager(
	client wire.Client,
	creds repository.SessionCredentialRepository,
	store *OutboundStore,
	logger *slog.Logger,
	cfg ManagerConfig,
) *ConnectionManager {
	m := &ConnectionManager{
		client:   client,
		creds:    creds,
		store:    store,
		logger:   logger.With("component", "connection_manager"),
		cfg:      cfg,
		events:   make(chan wire.Event, 64),
		commands: make(chan managerCommand, 8),
		state:    StateDisconnected,
	}
	client.SetEventHandler(m.enqueueEvent)
	client.SetResupplyHandler(store.Lookup)
	return m
}

// Run drives the session until ctx is cancelled. It connects immediately and
// keeps the session alive per the disconnect classification policy.
func (m *ConnectionManager) Run(ctx context.Context) error {
	m.connect(ctx)

	var reconnectTimer *time.Timer
	var reconnectC <-chan time.Time
	stopTimer := func() {
		if reconnectTimer != nil {
			reconnectTimer.Stop()
			reconnectTimer = nil
			reconnectC = nil
		}
	}
	schedule := func(d time.Duration) {
		stopTimer()
		m.logger.InfoContext(ctx, "reconnect scheduled", "delay", d)
		reconnectTimer = time.NewTimer(d)
		reconnectC = reconnectTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			m.client.Disconnect()
			m.setState(StateDisconnected)
			return ctx.Err()

		case <-reconnectC:
			reconnectTimer = nil
			reconnectC = nil
			m.connect(ctx)

		case ev := <-m.events:
			if d, ok := m.handleEvent(ctx, ev); ok {
				schedule(d)
			}

		case cmd := <-m.commands:
			switch cmd {
			case cmdRestart:
				m.logger.InfoContext(ctx, "administrative restart")
				m.client.Disconnect()
				m.resetAttempts()
				m.setState(StateDisconnected)
				schedule(m.cfg.RestartDelay)
			case cmdDisconnect:
				m.logger.InfoContext(ctx, "administrative disconnect")
				stopTimer()
				m.client.Disconnect()
				m.setState(StateDisconnected)
			case cmdForceNewPairing:
				m.logger.InfoContext(ctx, "forcing a new pairing, wiping credentials")
				if err := m.client.Logout(ctx); err != nil {
					m.logger.WarnContext(ctx, "logout before re-pairing failed", "error", err)
				}
				m.client.Disconnect()
				m.wipeCredentials(ctx)
				m.resetAttempts()
				m.setState(StateDisconnected)
				schedule(m.cfg.RestartDelay)
			}
		}
	}
}

func (m *ConnectionManager) connect(ctx context.Context) {
	m.setState(StateConnecting)
	if err := m.client.Connect(ctx); err != nil {
		m.logger.ErrorContext(ctx, "connect failed", "error", err)
		// Treated like a transient drop; the event path is not involved.
		m.enqueueEvent(wire.Event{Type: wire.EventDisconnected, Reason: wire.ReasonConnectionLost})
	}
}

// handleEvent applies one wire event; the second return value is true when a
// reconnect should be scheduled after the returned delay.
func (m *ConnectionManager) handleEvent(ctx context.Context, ev wire.Event) (time.Duration, bool) {
	switch ev.Type {
	case wire.EventPairingCode:
		m.logger.InfoContext(ctx, "pairing payload received, scan to link the device")
		m.mu.Lock()
		m.state = StateAwaitingPairing
		m.pairingCode = ev.PairingCode
		m.mu.Unlock()
		return 0, false

	case wire.EventConnected:
		m.logger.InfoContext(ctx, "session connected")
		m.mu.Lock()
		m.state = StateConnected
		m.pairingCode = ""
		m.attempts = 0
		m.mu.Unlock()
		return 0, false

	case wire.EventDisconnected:
		return m.handleDisconnect(ctx, ev.Reason)

	default:
		m.logger.WarnContext(ctx, "unhandled wire event", "type", ev.Type)
		return 0, false
	}
}

func (m *ConnectionManager) handleDisconnect(ctx context.Context, reason wire.DisconnectReason) (time.Duration, bool) {
	reconnectCounter.WithLabelValues(string(reason)).Inc()

	switch {
	case reason == wire.ReasonLoggedOut:
		// The account was unlinked (or banned) elsewhere; the stored identity
		// is worthless and the device must pair from scratch.
		m.logger.WarnContext(ctx, "device logged out, wiping credentials for re-pairing")
		m.wipeCredentials(ctx)
		m.resetAttempts()
		m.setState(StateLoggedOut)
		return m.cfg.RestartDelay, true

	case reason == wire.ReasonMustRestart:
		m.logger.InfoContext(ctx, "server requested restart, reconnecting immediately")
		m.setState(StateDisconnected)
		return 0, true

	case reason.Transient():
		m.mu.Lock()
		m.attempts++
		attempts := m.attempts
		m.state = StateDisconnected
		m.mu.Unlock()

		if attempts > m.cfg.MaxAttempts {
			m.logger.ErrorContext(ctx, "reconnect attempts exhausted, waiting for operator restart",
				"attempts", attempts, "max", m.cfg.MaxAttempts)
			return 0, false
		}
		d := m.transientDelay(attempts)
		m.logger.WarnContext(ctx, "session dropped", "reason", reason, "attempt", attempts, "next_try_in", d)
		return d, true

	default:
		m.mu.Lock()
		m.attempts++
		attempts := m.attempts
		m.state = StateDisconnected
		m.mu.Unlock()

		d := m.linearDelay(attempts)
		m.logger.WarnContext(ctx, "session dropped for unclassified reason", "reason", reason, "attempt", attempts, "next_try_in", d)
		return d, true
	}
}

// transientDelay is min(base * 2^(attempts-1), cap) plus jitter.
func (m *ConnectionManager) transientDelay(attempts int) time.Duration {
	d := m.cfg.BaseDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= m.cfg.MaxDelay {
			d = m.cfg.MaxDelay
			break
		}
	}
	if d > m.cfg.MaxDelay {
		d = m.cfg.MaxDelay
	}
	return d + m.jitter()
}

// linearDelay grows by 5s per attempt, capped at 30s.
func (m *ConnectionManager) linearDelay(attempts int) time.Duration {
	d := time.Duration(attempts) * 5 * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d + m.jitter()
}

func (m *ConnectionManager) jitter() time.Duration {
	if m.cfg.MaxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(m.cfg.MaxJitter)))
}

// Send forwards one message to the wire. Only the send pipeline calls this;
// it performs no rate limiting or persistence of its own.
func (m *ConnectionManager) Send(ctx context.Context, messageID, address, body string) error {
	if m.State() != StateConnected {
		return fmt.Errorf("%w: state is %s", domain.ErrNotConnected, m.State())
	}
	return m.client.Send(ctx, messageID, address, body)
}

// RepairSession invalidates the per-recipient cryptographic session without
// touching the overall connection.
func (m *ConnectionManager) RepairSession(ctx context.Context, address string) error {
	m.logger.InfoContext(ctx, "repairing recipient session", "address", address)
	return m.client.RepairSession(ctx, address)
}

// IsConnected reports whether sends are currently possible.
func (m *ConnectionManager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *ConnectionManager) State() ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// PairingPayload returns the current pairing payload, or "" when the device
// is not waiting to be linked. The manager never regenerates it spontaneously.
func (m *ConnectionManager) PairingPayload() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAwaitingPairing {
		return ""
	}
	return m.pairingCode
}

// Restart tears the session down and reconnects after a short delay.
func (m *ConnectionManager) Restart() { m.commands <- cmdRestart }

// Disconnect tears the session down and leaves it down.
func (m *ConnectionManager) Disconnect() { m.commands <- cmdDisconnect }

// ForceNewPairing logs the device out, wipes credentials and starts a fresh
// pairing cycle.
func (m *ConnectionManager) ForceNewPairing() { m.commands <- cmdForceNewPairing }

func (m *ConnectionManager) enqueueEvent(ev wire.Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("event queue full, dropping wire event", "type", ev.Type)
	}
}

func (m *ConnectionManager) setState(s ConnState) {
	m.mu.Lock()
	m.state = s
	if s != StateAwaitingPairing {
		m.pairingCode = ""
	}
	m.mu.Unlock()
}

// ReconnectAttempts reports how many transient reconnects are pending since
// the session was last connected; zero while healthy.
func (m *ConnectionManager) ReconnectAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

func (m *ConnectionManager) resetAttempts() {
	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()
}

func (m *ConnectionManager) wipeCredentials(ctx context.Context) {
	if err := m.creds.DeleteAll(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to wipe session credentials", "error", err)
	}
}
