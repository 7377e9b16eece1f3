package state

// FollowState caches the path a bot is currently walking. The cache is
// keyed by Target: callers reuse the waypoints while the requested goal
// stays near Target and replan once it drifts.
type FollowState struct {
	// Path holds the remaining plan as world positions. Intermediate
	// entries are tile centers; the last entry may be an exact goal.
	Path []Vec2
	// Index is the waypoint currently being walked toward.
	Index int
	// Target is the goal Path was planned for.
	Target Vec2
}

// HasPath reports whether a cached plan with at least one pending
// waypoint remains.
func (f *FollowState) HasPath() bool {
	return f != nil && f.Index < len(f.Path)
}

// Clear drops the cached plan. The next steering step will replan.
func (f *FollowState) Clear() {
	if f == nil {
		return
	}
	f.Path = nil
	f.Index = 0
	f.Target = Vec2{}
}
