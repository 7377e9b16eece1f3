package supply

import (
	"context"

	"mendbots/server/logging"
)

const (
	// EventPacksLoaded is emitted when a bot converts repair packs into
	// pool capacity.
	EventPacksLoaded logging.EventType = "supply.packs_loaded"
	// EventPoolExhausted is emitted once when a bot runs completely dry:
	// empty pool, no stocked container, no packs on the owner.
	EventPoolExhausted logging.EventType = "supply.pool_exhausted"
)

// PacksLoadedPayload records a pool refill.
type PacksLoadedPayload struct {
	ContainerID    string  `json:"containerId,omitempty"`
	ContainerPacks int     `json:"containerPacks"`
	InventoryPacks int     `json:"inventoryPacks"`
	CapacityAfter  float64 `json:"capacityAfter"`
}

// PoolExhaustedPayload records the demand that went unmet.
type PoolExhaustedPayload struct {
	Requested float64 `json:"requested"`
}

// PacksLoaded publishes a refill event.
func PacksLoaded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PacksLoadedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPacksLoaded,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySupply,
		Payload:  payload,
		Extra:    extra,
	}
	if payload.ContainerID != "" {
		event.Targets = []logging.EntityRef{{ID: payload.ContainerID, Kind: logging.EntityKindContainer}}
	}
	pub.Publish(ctx, event)
}

// PoolExhausted publishes the one-shot out-of-supplies notice.
func PoolExhausted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PoolExhaustedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPoolExhausted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySupply,
		Payload:  payload,
		Extra:    extra,
	})
}
