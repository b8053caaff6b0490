// Package wire defines the small capability boundary around the messaging
// network client. The gateway never touches the network's protocol or
// cryptography; it consumes exactly this contract.
package wire

import "context"

// EventType enumerates what the client can report back to the gateway.
type EventType string

const (
	// EventPairingCode carries the current pairing payload while the device
	// is waiting to be linked.
	EventPairingCode EventType = "pairing_code"
	// EventConnected means the session is established and sends may proceed.
	EventConnected EventType = "connected"
	// EventDisconnected means the session dropped; Reason says why.
	EventDisconnected EventType = "disconnected"
	// EventCredentials carries an updated credential blob to persist.
	EventCredentials EventType = "credentials"
	// EventResupply is the network asking for the plaintext of a previously
	// sent message so the recipient can recover from a decryption failure.
	EventResupply EventType = "resupply"
)

// DisconnectReason classifies why the session dropped. The connection manager
// picks its reconnect strategy from this.
type DisconnectReason string

const (
	ReasonLoggedOut        DisconnectReason = "logged_out"
	ReasonMustRestart      DisconnectReason = "must_restart"
	ReasonTimeout          DisconnectReason = "timeout"
	ReasonConnectionLost   DisconnectReason = "connection_lost"
	ReasonConnectionClosed DisconnectReason = "connection_closed"
	ReasonUnknown          DisconnectReason = "unknown"
)

// Transient reports whether the reason warrants plain reconnection backoff.
func (r DisconnectReason) Transient() bool {
	switch r {
	case ReasonTimeout, ReasonConnectionLost, ReasonConnectionClosed:
		return true
	}
	return false
}

// Event is pushed by the client into the connection manager's loop.
type Event struct {
	Type   EventType
	Reason DisconnectReason // set for EventDisconnected

	PairingCode string // set for EventPairingCode

	CredentialKey  string // set for EventCredentials
	CredentialData []byte

	MessageID        string // set for EventResupply
	RecipientAddress string // set for EventResupply; may be empty
}

// EventHandler receives client events. Handlers must not block.
type EventHandler func(Event)

// ResupplyHandler resolves a resupply request to the original body.
// ok=false means the message is unknown (expired or never sent by us).
type ResupplyHandler func(messageID, recipientAddress string) (body string, ok bool)

// Client is the messaging network capability the gateway consumes.
// Implementations map their native failures onto the domain error taxonomy
// (ErrSessionDesync, ErrRateLimited, ErrTransient, ErrLoggedOut).
type Client interface {
	// Connect opens the session from persisted credentials, generating fresh
	// ones when none exist, and starts emitting events.
	Connect(ctx context.Context) error
	// Disconnect tears the session down without touching credentials.
	Disconnect()
	// Logout unlinks the device on the network side.
	Logout(ctx context.Context) error
	// Send delivers body to address under the caller-chosen message id.
	Send(ctx context.Context, messageID, address, body string) error
	// RepairSession invalidates the cryptographic session for one recipient.
	RepairSession(ctx context.Context, address string) error

	SetEventHandler(h EventHandler)
	SetResupplyHandler(h ResupplyHandler)
}
