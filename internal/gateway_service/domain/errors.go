package domain

import "errors"

// Send-path error taxonomy. The send pipeline classifies wire failures into
// these sentinels; everything above the pipeline only checks errors.Is.
var (
	// ErrNotConnected: the messaging session is not established.
	ErrNotConnected = errors.New("messaging session not connected")

	// ErrInvalidRecipient: the phone number cannot be normalized. Never retried.
	ErrInvalidRecipient = errors.New("invalid recipient phone number")

	// ErrSessionDesync: per-recipient cryptographic session is stale; a repair
	// plus one retry is worth attempting.
	ErrSessionDesync = errors.New("recipient session out of sync")

	// ErrRateLimited: the network is throttling us; back off hard.
	ErrRateLimited = errors.New("rate limited by messaging network")

	// ErrTransient: connectivity hiccup; retried with standard backoff.
	ErrTransient = errors.New("transient network error")

	// ErrLoggedOut: the device was logged out or banned. Credentials must be
	// wiped and the device re-paired before anything can be sent.
	ErrLoggedOut = errors.New("device logged out from messaging network")
)
