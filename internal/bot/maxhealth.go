package bot

// maxHealthResolver resolves structure health ceilings. Kinds missing from
// the static source fall back to the highest health observed across live
// instances, recorded once per kind for the session's lifetime. A zero
// result marks the kind unrepairable.
type maxHealthResolver struct {
	source   MaxHealthSource
	world    WorldView
	observed map[string]float64
}

func newMaxHealthResolver(source MaxHealthSource, world WorldView) *maxHealthResolver {
	return &maxHealthResolver{
		source:   source,
		world:    world,
		observed: make(map[string]float64),
	}
}

func (r *maxHealthResolver) maxOf(kind string) float64 {
	if r == nil || kind == "" {
		return 0
	}
	if r.source != nil {
		if ceiling, ok := r.source.MaxHealth(kind); ok && ceiling > 0 {
			return ceiling
		}
	}
	if cached, ok := r.observed[kind]; ok {
		return cached
	}
	highest := 0.0
	if r.world != nil {
		highest = r.world.HighestHealthOfKind(kind)
	}
	r.observed[kind] = highest
	return highest
}
