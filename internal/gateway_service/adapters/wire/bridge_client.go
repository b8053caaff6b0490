package wire

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository"
	pgrepo "github.com/agendazap/notification-gateway/internal/gateway_service/repository/postgres"
)

// deviceCredentialKey is the blob key holding the device identity; per-contact
// session material lives under "session:<address>".
const deviceCredentialKey = "device"

// BridgeClient talks to the protocol bridge sidecar over HTTP. The bridge owns
// the wire protocol and cryptography; this client feeds it credentials from
// the durable store, relays its events, and maps its failures onto the domain
// error taxonomy.
type BridgeClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	credsRepo  repository.SessionCredentialRepository

	mu          sync.Mutex
	eventFn     EventHandler
	resupplyFn  ResupplyHandler
	pollCancel  context.CancelFunc
}

func NewBridgeClient(logger *slog.Logger, baseURL, apiKey string, credsRepo repository.SessionCredentialRepository, httpClient *http.Client) *BridgeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 45 * time.Second}
	}
	return &BridgeClient{
		logger:     logger.With("component", "wire_bridge"),
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		credsRepo:  credsRepo,
	}
}

func (c *BridgeClient) SetEventHandler(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventFn = h
}

func (c *BridgeClient) SetResupplyHandler(h ResupplyHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resupplyFn = h
}

type openSessionRequest struct {
	Credentials string `json:"credentials,omitempty"` // base64; empty pairs a fresh device
}

func (c *BridgeClient) Connect(ctx context.Context) error {
	req := openSessionRequest{}
	data, err := c.credsRepo.Get(ctx, deviceCredentialKey)
	switch {
	case err == nil:
		req.Credentials = base64.StdEncoding.EncodeToString(data)
	case errors.Is(err, pgrepo.ErrSessionCredentialNotFound):
		c.logger.InfoContext(ctx, "no persisted credentials, a fresh pairing will be required")
	default:
		return fmt.Errorf("failed to load session credentials: %w", err)
	}

	if err := c.post(ctx, "/v1/session/open", req, nil); err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.pollCancel != nil {
		c.pollCancel()
	}
	c.pollCancel = cancel
	c.mu.Unlock()

	go c.pollEvents(pollCtx)
	return nil
}

func (c *BridgeClient) Disconnect() {
	c.mu.Lock()
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.post(ctx, "/v1/session/close", struct{}{}, nil); err != nil {
		c.logger.Warn("failed to close bridge session", "error", err)
	}
}

func (c *BridgeClient) Logout(ctx context.Context) error {
	return c.post(ctx, "/v1/session/logout", struct{}{}, nil)
}

type sendMessageRequest struct {
	ID   string `json:"id"`
	To   string `json:"to"`
	Body string `json:"body"`
}

func (c *BridgeClient) Send(ctx context.Context, messageID, address, body string) error {
	return c.post(ctx, "/v1/messages", sendMessageRequest{ID: messageID, To: address, Body: body}, nil)
}

func (c *BridgeClient) RepairSession(ctx context.Context, address string) error {
	if err := c.post(ctx, "/v1/session/repair", map[string]string{"to": address}, nil); err != nil {
		return err
	}
	// Drop our mirror of the per-contact session so the next handshake
	// starts clean.
	if err := c.credsRepo.Delete(ctx, "session:"+address); err != nil {
		c.logger.WarnContext(ctx, "failed to drop local session material", "address", address, "error", err)
	}
	return nil
}

// bridgeEvent is the wire format of the bridge's event feed.
type bridgeEvent struct {
	Type           string `json:"type"`
	Reason         string `json:"reason,omitempty"`
	PairingCode    string `json:"pairing_code,omitempty"`
	CredentialKey  string `json:"credential_key,omitempty"`
	CredentialData string `json:"credential_data,omitempty"` // base64
	MessageID      string `json:"message_id,omitempty"`
	Recipient      string `json:"recipient,omitempty"`
}

// pollEvents long-polls the bridge event feed until cancelled. Transport
// errors here are retried on a short fixed delay; session-level reconnection
// policy belongs to the connection manager, not this loop.
func (c *BridgeClient) pollEvents(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		events, err := c.fetchEvents(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("event poll failed", "error", err)
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		for _, ev := range events {
			c.handleBridgeEvent(ctx, ev)
		}
	}
}

func (c *BridgeClient) fetchEvents(ctx context.Context) ([]bridgeEvent, error) {
	var events []bridgeEvent
	if err := c.get(ctx, "/v1/session/events?timeout=30", &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *BridgeClient) handleBridgeEvent(ctx context.Context, ev bridgeEvent) {
	c.mu.Lock()
	eventFn := c.eventFn
	resupplyFn := c.resupplyFn
	c.mu.Unlock()

	switch EventType(ev.Type) {
	case EventCredentials:
		data, err := base64.StdEncoding.DecodeString(ev.CredentialData)
		if err != nil {
			c.logger.ErrorContext(ctx, "bridge sent undecodable credential blob", "key", ev.CredentialKey, "error", err)
			return
		}
		key := ev.CredentialKey
		if key == "" {
			key = deviceCredentialKey
		}
		if err := c.credsRepo.Put(ctx, key, data); err != nil {
			c.logger.ErrorContext(ctx, "failed to persist credentials", "key", key, "error", err)
		}
	case EventResupply:
		if resupplyFn == nil {
			return
		}
		body, ok := resupplyFn(ev.MessageID, ev.Recipient)
		reply := map[string]any{"id": ev.MessageID, "to": ev.Recipient, "body": body, "found": ok}
		if err := c.post(ctx, "/v1/messages/resupply", reply, nil); err != nil {
			c.logger.ErrorContext(ctx, "failed to answer resupply request", "message_id", ev.MessageID, "error", err)
		}
	default:
		if eventFn == nil {
			return
		}
		eventFn(Event{
			Type:        EventType(ev.Type),
			Reason:      DisconnectReason(ev.Reason),
			PairingCode: ev.PairingCode,
		})
	}
}

func (c *BridgeClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal bridge request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *BridgeClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *BridgeClient) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode bridge response: %w", err)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyBridgeStatus(resp.StatusCode, string(raw))
}

// classifyBridgeStatus maps the bridge's HTTP statuses onto the domain error
// taxonomy so the layers above never see HTTP.
func classifyBridgeStatus(status int, detail string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: bridge returned %d: %s", domain.ErrLoggedOut, status, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: bridge returned %d: %s", domain.ErrRateLimited, status, detail)
	case http.StatusConflict, http.StatusPreconditionFailed:
		return fmt.Errorf("%w: bridge returned %d: %s", domain.ErrSessionDesync, status, detail)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: bridge returned %d: %s", domain.ErrInvalidRecipient, status, detail)
	default:
		return fmt.Errorf("%w: bridge returned %d: %s", domain.ErrTransient, status, detail)
	}
}
