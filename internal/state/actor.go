package state

// Actor is the publicly visible portion of any mobile entity: a
// supervising owner or one of its service bots.
type Actor struct {
	ID        string    `json:"id"`
	Pos       Vec2      `json:"pos"`
	Inventory Inventory `json:"inventory"`
}

// ActorState couples the visible actor with per-tick bookkeeping that
// never leaves the server.
type ActorState struct {
	Actor

	// IntentX/IntentY is the last movement direction requested over the
	// wire, already normalized to at most unit length.
	IntentX float64
	IntentY float64
}

// SnapshotActor returns the wire-safe copy of the actor, with the
// inventory deep-copied so later mutation cannot leak into a frame
// already handed to an encoder.
func SnapshotActor(a *ActorState) Actor {
	if a == nil {
		return Actor{}
	}
	snap := a.Actor
	snap.Inventory = a.Inventory.Clone()
	return snap
}
