package session

import (
	"github.com/btccom/hwsigner/wallet"
	"github.com/google/uuid"
)

// EventKind names the events a session publishes.
type EventKind string

const (
	// EventDeviceConnected is published once per successful Connect.
	EventDeviceConnected EventKind = "device:connected"

	// EventSignedTx is published once per successful Sign.
	EventSignedTx EventKind = "signed:tx"
)

// Event is delivered to the handlers registered on a session.
// Failures are never published, they are returned to the caller.
type Event struct {
	ID        uuid.UUID                 `json:"id"`
	Kind      EventKind                 `json:"event"`
	SessionID uuid.UUID                 `json:"session"`
	Device    string                    `json:"device,omitempty"`
	SignedTx  *wallet.SignedTransaction `json:"data,omitempty"`
}

// EventHandler consumes session events.
type EventHandler func(Event)
