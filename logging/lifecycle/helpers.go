package lifecycle

import (
	"context"

	"mendbots/server/logging"
)

const (
	// EventOwnerJoined is emitted when a supervising actor joins the world.
	EventOwnerJoined logging.EventType = "lifecycle.owner_joined"
	// EventOwnerLeft is emitted when a supervising actor leaves the world.
	EventOwnerLeft logging.EventType = "lifecycle.owner_left"
	// EventBotDeployed is emitted when an owner toggles a service bot on.
	EventBotDeployed logging.EventType = "lifecycle.bot_deployed"
	// EventBotRecalled is emitted when an owner toggles its bot off.
	EventBotRecalled logging.EventType = "lifecycle.bot_recalled"
)

// OwnerJoinedPayload captures spawn metadata for a new owner.
type OwnerJoinedPayload struct {
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// OwnerLeftPayload captures the reason an owner left.
type OwnerLeftPayload struct {
	Reason string `json:"reason"`
}

// BotDeployedPayload captures where a fresh bot entered the world.
type BotDeployedPayload struct {
	OwnerID string  `json:"ownerId"`
	SpawnX  float64 `json:"spawnX"`
	SpawnY  float64 `json:"spawnY"`
}

// BotRecalledPayload captures why a bot was despawned.
type BotRecalledPayload struct {
	OwnerID string `json:"ownerId"`
	Reason  string `json:"reason"`
}

// OwnerJoined publishes an owner join event.
func OwnerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload OwnerJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventOwnerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// OwnerLeft publishes an owner departure event.
func OwnerLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload OwnerLeftPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventOwnerLeft,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// BotDeployed publishes a bot deployment event.
func BotDeployed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BotDeployedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBotDeployed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// BotRecalled publishes a bot recall event.
func BotRecalled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BotRecalledPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBotRecalled,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
