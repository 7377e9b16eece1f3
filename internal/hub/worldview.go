package hub

import (
	"mendbots/server/internal/bot"
	state "mendbots/server/internal/state"
	"mendbots/server/internal/world"
)

// worldAdapter narrows *world.World to the collaborator interfaces the bot
// controller consumes, fixing the path-planning margin the hub was
// configured with. Callers must hold the hub mutex; the world model has no
// locking of its own.
type worldAdapter struct {
	world  *world.World
	margin int
}

func (w worldAdapter) ActorPosition(id string) (bot.Vec2, bool) {
	return w.world.ActorPosition(id)
}

func (w worldAdapter) SetActorPosition(id string, pos bot.Vec2) {
	w.world.SetActorPosition(id, pos)
}

func (w worldAdapter) DamagedStructures(center bot.Vec2, radius float64, maxOf func(kind string) float64) []bot.StructureRef {
	damaged := w.world.DamagedStructures(center, radius, maxOf)
	if len(damaged) == 0 {
		return nil
	}
	refs := make([]bot.StructureRef, 0, len(damaged))
	for _, s := range damaged {
		refs = append(refs, structureRef(s))
	}
	return refs
}

func (w worldAdapter) Structure(id string) (bot.StructureRef, bool) {
	s, ok := w.world.StructureByID(id)
	if !ok {
		return bot.StructureRef{}, false
	}
	return structureRef(s), true
}

func (w worldAdapter) SetStructureHealth(id string, health float64) bool {
	return w.world.SetStructureHealth(id, health)
}

func (w worldAdapter) HighestHealthOfKind(kind string) float64 {
	return w.world.HighestHealthOfKind(kind)
}

func (w worldAdapter) PlanPath(start, goal bot.Vec2) ([]bot.Vec2, bool) {
	return w.world.PlanPath(start, goal, w.margin)
}

func (w worldAdapter) ContainerHolds(id string, item state.ItemType) int {
	return w.world.ContainerHolds(id, item)
}

func (w worldAdapter) TakeFromContainer(id string, item state.ItemType, quantity int) int {
	return w.world.TakeFromContainer(id, item, quantity)
}

func (w worldAdapter) NearestStockedContainer(near bot.Vec2, item state.ItemType) (string, bool) {
	return w.world.NearestStockedContainer(near, item)
}

func (w worldAdapter) ActorHolds(id string, item state.ItemType) int {
	return w.world.ActorHolds(id, item)
}

func (w worldAdapter) TakeFromActor(id string, item state.ItemType, quantity int) int {
	return w.world.TakeFromActor(id, item, quantity)
}

func (w worldAdapter) SpawnBot(ownerID string) (string, bot.Vec2, bool) {
	return w.world.SpawnBot(ownerID)
}

func (w worldAdapter) RemoveBot(id string) {
	w.world.RemoveBot(id)
}

func structureRef(s world.Structure) bot.StructureRef {
	return bot.StructureRef{ID: s.ID, Kind: s.Kind, Pos: s.Pos, Health: s.Health}
}
