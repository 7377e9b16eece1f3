package bot

import "testing"

func TestResolverPrefersCatalogCeiling(t *testing.T) {
	world := newStubWorld()
	world.structures["s-1"] = &stubStructure{kind: "turbine", pos: Vec2{}, health: 900}

	resolver := newMaxHealthResolver(stubKinds{"turbine": 500}, world)
	if got := resolver.maxOf("turbine"); got != 500 {
		t.Fatalf("maxOf = %v, want the catalog ceiling 500", got)
	}
}

func TestResolverFallsBackToObservedHealth(t *testing.T) {
	world := newStubWorld()
	world.structures["s-1"] = &stubStructure{kind: "derrick", pos: Vec2{}, health: 300}

	resolver := newMaxHealthResolver(stubKinds{}, world)
	if got := resolver.maxOf("derrick"); got != 300 {
		t.Fatalf("maxOf = %v, want observed 300", got)
	}

	// The observation sticks even after the healthiest instance disappears.
	delete(world.structures, "s-1")
	if got := resolver.maxOf("derrick"); got != 300 {
		t.Fatalf("maxOf = %v after removal, want cached 300", got)
	}
}

func TestResolverCachesMissingKind(t *testing.T) {
	world := newStubWorld()

	resolver := newMaxHealthResolver(stubKinds{}, world)
	if got := resolver.maxOf("derrick"); got != 0 {
		t.Fatalf("maxOf = %v for an unseen kind, want 0", got)
	}

	world.structures["s-1"] = &stubStructure{kind: "derrick", pos: Vec2{}, health: 400}
	if got := resolver.maxOf("derrick"); got != 0 {
		t.Fatalf("maxOf = %v, the zero observation is cached per deployment", got)
	}
	if got := resolver.maxOf(""); got != 0 {
		t.Fatalf("maxOf = %v for an empty kind, want 0", got)
	}
}
