package bot

// RouteTarget pairs a repair target with the position it was observed at.
type RouteTarget struct {
	ID  string
	Pos Vec2
}

// BuildRoute orders targets by repeated nearest-neighbor hops starting from
// start and returns their IDs. Every input target appears exactly once.
// Distance ties resolve toward the smaller ID so rebuilt routes stay stable.
func BuildRoute(targets []RouteTarget, start Vec2) []string {
	if len(targets) == 0 {
		return nil
	}

	remaining := append([]RouteTarget(nil), targets...)
	route := make([]string, 0, len(remaining))
	current := start

	for len(remaining) > 0 {
		best := 0
		bestDist := distSq(current, remaining[0].Pos)
		for i := 1; i < len(remaining); i++ {
			d := distSq(current, remaining[i].Pos)
			if d < bestDist || (d == bestDist && remaining[i].ID < remaining[best].ID) {
				best = i
				bestDist = d
			}
		}
		picked := remaining[best]
		route = append(route, picked.ID)
		current = picked.Pos
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	return route
}
