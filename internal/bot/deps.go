package bot

import (
	state "mendbots/server/internal/state"
	"mendbots/server/logging"
)

// Vec2 captures a 2D vector shared with the world model.
type Vec2 = state.Vec2

// StructureRef mirrors the subset of structure state required by the repair
// controller.
type StructureRef struct {
	ID     string
	Kind   string
	Pos    Vec2
	Health float64
}

// PathPlanner computes world-space waypoint paths between two positions.
// A false return means no path could be produced, not even a partial one.
type PathPlanner interface {
	PlanPath(start, goal Vec2) ([]Vec2, bool)
}

// PlannerFunc adapts functions into the PathPlanner interface.
type PlannerFunc func(start, goal Vec2) ([]Vec2, bool)

// PlanPath implements PathPlanner for PlannerFunc.
func (f PlannerFunc) PlanPath(start, goal Vec2) ([]Vec2, bool) {
	if f == nil {
		return nil, false
	}
	return f(start, goal)
}

// Mover applies per-cycle position updates to actors.
type Mover interface {
	SetActorPosition(id string, pos Vec2)
}

// WorldView exposes the structure queries and mutations the controller
// performs against the world model.
type WorldView interface {
	ActorPosition(id string) (Vec2, bool)
	DamagedStructures(center Vec2, radius float64, maxOf func(kind string) float64) []StructureRef
	Structure(id string) (StructureRef, bool)
	SetStructureHealth(id string, health float64) bool
	HighestHealthOfKind(kind string) float64
}

// Supplies exposes the repair-pack sources drained by the supply pool.
type Supplies interface {
	ContainerHolds(id string, item state.ItemType) int
	TakeFromContainer(id string, item state.ItemType, quantity int) int
	NearestStockedContainer(near Vec2, item state.ItemType) (string, bool)
	ActorHolds(id string, item state.ItemType) int
	TakeFromActor(id string, item state.ItemType, quantity int) int
}

// Spawner manages bot actor lifecycle in the world model.
type Spawner interface {
	SpawnBot(ownerID string) (string, Vec2, bool)
	RemoveBot(id string)
}

// MaxHealthSource resolves the authored health ceiling for a structure kind.
type MaxHealthSource interface {
	MaxHealth(kind string) (float64, bool)
}

// Deps bundles the collaborators required by the controller. Every field is
// optional for tests; the controller degrades to a no-op when a collaborator
// it needs is absent.
type Deps struct {
	World     WorldView
	Planner   PathPlanner
	Mover     Mover
	Supplies  Supplies
	Spawner   Spawner
	MaxHealth MaxHealthSource
	Publisher logging.Publisher
}
