// Package network logs websocket session churn. Socket events are kept
// separate from world lifecycle: an owner survives a socket swap, the
// socket itself does not.
package network

import (
	"context"

	"mendbots/server/logging"
)

const (
	// EventClientAttached is emitted when an owner's websocket subscription is registered.
	EventClientAttached logging.EventType = "network.client_attached"
	// EventClientDropped is emitted when an owner's websocket subscription is discarded.
	EventClientDropped logging.EventType = "network.client_dropped"
)

// AttachPayload notes whether the new socket displaced a live one.
type AttachPayload struct {
	Replaced bool `json:"replaced"`
}

// DropPayload captures why the socket went away.
type DropPayload struct {
	Reason string `json:"reason"`
}

// ClientAttached publishes a debug event when a subscription is registered.
func ClientAttached(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AttachPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientAttached,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	})
}

// ClientDropped publishes a debug event when a subscription is discarded.
func ClientDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DropPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	})
}
