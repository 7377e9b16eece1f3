package repair

import (
	"context"

	"mendbots/server/logging"
)

const (
	// EventStructureRepaired is emitted each time a bot restores health
	// to a structure.
	EventStructureRepaired logging.EventType = "repair.structure_repaired"
	// EventRouteRebuilt is emitted when a bot reorders its pending
	// repair targets.
	EventRouteRebuilt logging.EventType = "repair.route_rebuilt"
)

// StructureRepairedPayload records one repair application.
type StructureRepairedPayload struct {
	StructureID string  `json:"structureId"`
	Kind        string  `json:"kind"`
	Amount      float64 `json:"amount"`
	HealthAfter float64 `json:"healthAfter"`
}

// RouteRebuiltPayload records the size of a freshly sequenced route.
type RouteRebuiltPayload struct {
	Targets int `json:"targets"`
}

// StructureRepaired publishes a repair event.
func StructureRepaired(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StructureRepairedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStructureRepaired,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{{ID: payload.StructureID, Kind: logging.EntityKindStructure}},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRepair,
		Payload:  payload,
		Extra:    extra,
	})
}

// RouteRebuilt publishes a route sequencing event at debug severity.
func RouteRebuilt(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RouteRebuiltPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRouteRebuilt,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryRepair,
		Payload:  payload,
		Extra:    extra,
	})
}
