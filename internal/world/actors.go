package world

import (
	"fmt"
	"math"
	"sort"

	"mendbots/server/internal/state"
)

// botSpawnOffsets is tried in order when placing a freshly deployed bot
// next to its owner.
var botSpawnOffsets = [...]TilePos{
	{Col: 1, Row: 0},
	{Col: -1, Row: 0},
	{Col: 0, Row: 1},
	{Col: 0, Row: -1},
	{Col: 1, Row: 1},
	{Col: 1, Row: -1},
	{Col: -1, Row: 1},
	{Col: -1, Row: -1},
	{Col: 2, Row: 0},
	{Col: -2, Row: 0},
	{Col: 0, Row: 2},
	{Col: 0, Row: -2},
}

// AddOwner registers a supervising actor, spawning it near the map
// center with its starting pack allotment. Re-adding an existing ID
// returns the live record untouched.
func (w *World) AddOwner(id string) *state.ActorState {
	if w == nil || id == "" {
		return nil
	}
	if existing, ok := w.owners[id]; ok {
		return existing
	}

	actor := &state.ActorState{Actor: state.Actor{
		ID:        id,
		Pos:       w.ownerSpawnPosition(),
		Inventory: state.NewInventory(),
	}}
	if w.config.OwnerPacks > 0 {
		actor.Inventory.AddStack(state.ItemStack{Type: w.PackItem(), Quantity: w.config.OwnerPacks})
	}
	w.owners[id] = actor
	return actor
}

func (w *World) ownerSpawnPosition() Vec2 {
	center := Vec2{X: w.config.Width / 2, Y: w.config.Height / 2}
	angle := RandomAngle(w.spawnRNG)
	dist := RandomDistance(w.spawnRNG, 0, OwnerSpawnSpread)
	return w.clampToWorld(Vec2{
		X: center.X + math.Cos(angle)*dist,
		Y: center.Y + math.Sin(angle)*dist,
	})
}

// RemoveOwner drops the owner record. Bots belonging to it are managed
// separately by the bot controller.
func (w *World) RemoveOwner(id string) {
	if w == nil {
		return
	}
	delete(w.owners, id)
}

// Owner returns the live owner record.
func (w *World) Owner(id string) (*state.ActorState, bool) {
	if w == nil {
		return nil, false
	}
	actor, ok := w.owners[id]
	return actor, ok
}

// SpawnBot places a new service bot on a free tile adjacent to its
// owner and returns its ID and position.
func (w *World) SpawnBot(ownerID string) (string, Vec2, bool) {
	if w == nil {
		return "", Vec2{}, false
	}
	owner, ok := w.owners[ownerID]
	if !ok {
		return "", Vec2{}, false
	}

	pos := owner.Pos
	anchor := TileOf(owner.Pos)
	for _, offset := range botSpawnOffsets {
		tile := TilePos{Col: anchor.Col + offset.Col, Row: anchor.Row + offset.Row}
		if w.tileInWorld(tile) && !w.TileBlocked(tile) {
			pos = tile.Center()
			break
		}
	}

	w.nextBotID++
	id := fmt.Sprintf("bot-%d", w.nextBotID)
	w.bots[id] = &state.ActorState{Actor: state.Actor{
		ID:        id,
		Pos:       pos,
		Inventory: state.NewInventory(),
	}}
	return id, pos, true
}

// RemoveBot despawns a bot.
func (w *World) RemoveBot(id string) {
	if w == nil {
		return
	}
	delete(w.bots, id)
}

// ActorPosition reports the current position of an owner or bot.
func (w *World) ActorPosition(id string) (Vec2, bool) {
	if w == nil {
		return Vec2{}, false
	}
	if actor, ok := w.owners[id]; ok {
		return actor.Pos, true
	}
	if actor, ok := w.bots[id]; ok {
		return actor.Pos, true
	}
	return Vec2{}, false
}

// SetActorPosition moves an owner or bot, clamping the position into
// the world. Non-finite coordinates are discarded.
func (w *World) SetActorPosition(id string, pos Vec2) {
	if w == nil {
		return
	}
	if math.IsNaN(pos.X) || math.IsInf(pos.X, 0) || math.IsNaN(pos.Y) || math.IsInf(pos.Y, 0) {
		return
	}
	clamped := w.clampToWorld(pos)
	if actor, ok := w.owners[id]; ok {
		actor.Pos = clamped
		return
	}
	if actor, ok := w.bots[id]; ok {
		actor.Pos = clamped
	}
}

func (w *World) clampToWorld(pos Vec2) Vec2 {
	maxX := w.config.Width - 1
	if maxX < 0 {
		maxX = 0
	}
	maxY := w.config.Height - 1
	if maxY < 0 {
		maxY = 0
	}
	return Vec2{X: Clamp(pos.X, 0, maxX), Y: Clamp(pos.Y, 0, maxY)}
}

func (w *World) tileInWorld(t TilePos) bool {
	return t.Col >= 0 && t.Row >= 0 && t.Col < int(w.config.Width) && t.Row < int(w.config.Height)
}

// ActorHolds reports how many units of the item the actor carries.
func (w *World) ActorHolds(id string, item state.ItemType) int {
	actor, ok := w.lookupActor(id)
	if !ok {
		return 0
	}
	return actor.Inventory.CountOf(item)
}

// TakeFromActor removes up to quantity units of the item from the
// actor's inventory and returns how many were removed.
func (w *World) TakeFromActor(id string, item state.ItemType, quantity int) int {
	actor, ok := w.lookupActor(id)
	if !ok {
		return 0
	}
	return actor.Inventory.RemoveOfType(item, quantity)
}

// GrantToActor adds units of the item to the actor's inventory.
func (w *World) GrantToActor(id string, item state.ItemType, quantity int) bool {
	actor, ok := w.lookupActor(id)
	if !ok || quantity <= 0 {
		return false
	}
	_, err := actor.Inventory.AddStack(state.ItemStack{Type: item, Quantity: quantity})
	return err == nil
}

func (w *World) lookupActor(id string) (*state.ActorState, bool) {
	if w == nil {
		return nil, false
	}
	if actor, ok := w.owners[id]; ok {
		return actor, true
	}
	if actor, ok := w.bots[id]; ok {
		return actor, true
	}
	return nil, false
}

// Owners returns wire-safe snapshots of every owner, ordered by ID.
func (w *World) Owners() []state.Actor {
	return snapshotActors(w, w.owners)
}

// Bots returns wire-safe snapshots of every bot, ordered by ID.
func (w *World) Bots() []state.Actor {
	return snapshotActors(w, w.bots)
}

func snapshotActors(w *World, actors map[string]*state.ActorState) []state.Actor {
	if w == nil || len(actors) == 0 {
		return nil
	}
	ids := make([]string, 0, len(actors))
	for id := range actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snapshots := make([]state.Actor, 0, len(ids))
	for _, id := range ids {
		snapshots = append(snapshots, state.SnapshotActor(actors[id]))
	}
	return snapshots
}
