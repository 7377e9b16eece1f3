package world

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

var testKinds = []StructureKind{
	{Kind: "turbine", MaxHealth: 500, Blocking: true},
	{Kind: "relay", MaxHealth: 200, Blocking: false},
}

func newScenarioWorld(t *testing.T, scenario string) *World {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := os.WriteFile(path, []byte(scenario), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ScenarioPath = path
	w, err := New(cfg, Deps{Kinds: testKinds})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return w
}

func TestNewNormalizesConfigAndSeedsRNG(t *testing.T) {
	w, err := New(Config{Seed: "  ", Width: -5, ObstacleCount: -3, DamagedRatio: 9}, Deps{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	cfg := w.Config()
	if cfg.Seed != DefaultSeed {
		t.Fatalf("expected default seed, got %q", cfg.Seed)
	}
	if cfg.Width != DefaultWidth || cfg.Height != DefaultHeight {
		t.Fatalf("expected default dimensions, got %fx%f", cfg.Width, cfg.Height)
	}
	if cfg.ObstacleCount != 0 {
		t.Fatalf("expected negative count clamped to 0, got %d", cfg.ObstacleCount)
	}
	if cfg.DamagedRatio != 1 {
		t.Fatalf("expected damaged ratio clamped to 1, got %f", cfg.DamagedRatio)
	}
	if cfg.PackItem != DefaultPackItem {
		t.Fatalf("expected default pack item, got %q", cfg.PackItem)
	}

	rng := w.RNG()
	if rng == nil {
		t.Fatalf("RNG not initialized")
	}
	expected := NewDeterministicRNG(cfg.Seed, "world")
	if diff := math.Abs(rng.Float64() - expected.Float64()); diff > 1e-9 {
		t.Fatalf("world RNG not seeded deterministically: diff=%f", diff)
	}
	sub := w.SubsystemRNG("test")
	wantSub := NewDeterministicRNG(cfg.Seed, "test")
	if diff := math.Abs(sub.Float64() - wantSub.Float64()); diff > 1e-9 {
		t.Fatalf("subsystem RNG mismatch: diff=%f", diff)
	}
}

func TestGenerationIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = "layout-check"

	build := func() *World {
		w, err := New(cfg, Deps{Kinds: testKinds})
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		return w
	}

	first := build()
	second := build()

	a, b := first.Obstacles(), second.Obstacles()
	if len(a) == 0 {
		t.Fatalf("expected generated obstacles")
	}
	if len(a) != len(b) {
		t.Fatalf("obstacle counts diverged: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("obstacle %d diverged: %+v vs %+v", i, a[i], b[i])
		}
	}

	sa, sb := first.Structures(), second.Structures()
	if len(sa) == 0 || len(sa) != len(sb) {
		t.Fatalf("structure counts diverged: %d vs %d", len(sa), len(sb))
	}
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("structure %d diverged: %+v vs %+v", i, sa[i], sb[i])
		}
	}
}

func TestGenerationKeepsSpawnClear(t *testing.T) {
	w, err := New(DefaultConfig(), Deps{Kinds: testKinds})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	width, height := w.Dimensions()
	center := Vec2{X: width / 2, Y: height / 2}

	for _, obs := range w.Obstacles() {
		if Dist(obs.Pos, center) < SpawnSafeRadius {
			t.Fatalf("obstacle %s inside the spawn safe radius at %+v", obs.ID, obs.Pos)
		}
	}
	for _, s := range w.Structures() {
		if Dist(s.Pos, center) < SpawnSafeRadius {
			t.Fatalf("structure %s inside the spawn safe radius at %+v", s.ID, s.Pos)
		}
	}
	for _, c := range w.Containers() {
		if Dist(c.Pos, center) < SpawnSafeRadius {
			t.Fatalf("container %s inside the spawn safe radius at %+v", c.ID, c.Pos)
		}
	}
}

func TestOwnersAndBots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Obstacles = false
	cfg.Structures = false
	cfg.ContainerCount = 0
	w, err := New(cfg, Deps{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	owner := w.AddOwner("owner-1")
	if owner == nil {
		t.Fatalf("expected owner record")
	}
	if got := w.ActorHolds("owner-1", w.PackItem()); got != cfg.OwnerPacks {
		t.Fatalf("expected %d starting packs, got %d", cfg.OwnerPacks, got)
	}
	if again := w.AddOwner("owner-1"); again != owner {
		t.Fatalf("re-adding an owner must return the live record")
	}

	botID, pos, ok := w.SpawnBot("owner-1")
	if !ok || botID == "" {
		t.Fatalf("expected a bot spawn for a live owner")
	}
	if Dist(pos, owner.Pos) > 3 {
		t.Fatalf("bot spawned too far from its owner: %+v vs %+v", pos, owner.Pos)
	}
	if got, ok := w.ActorPosition(botID); !ok || got != pos {
		t.Fatalf("expected bot position %+v, got %+v ok=%v", pos, got, ok)
	}

	w.SetActorPosition(botID, Vec2{X: -50, Y: 1e9})
	if got, _ := w.ActorPosition(botID); got.X != 0 || got.Y != cfg.Height-1 {
		t.Fatalf("expected clamped position, got %+v", got)
	}
	before, _ := w.ActorPosition(botID)
	w.SetActorPosition(botID, Vec2{X: math.NaN(), Y: 5})
	if got, _ := w.ActorPosition(botID); got != before {
		t.Fatalf("non-finite positions must be discarded, got %+v", got)
	}

	if _, _, ok := w.SpawnBot("missing"); ok {
		t.Fatalf("spawning for an unknown owner must fail")
	}

	w.RemoveBot(botID)
	if _, ok := w.ActorPosition(botID); ok {
		t.Fatalf("expected bot to be gone after removal")
	}
	w.RemoveOwner("owner-1")
	if _, ok := w.Owner("owner-1"); ok {
		t.Fatalf("expected owner to be gone after removal")
	}
}

const layoutFixture = `{
  "obstacles": [{"col": 1, "row": 1}],
  "structures": [
    {"id": "pump-a", "kind": "turbine", "col": 4, "row": 5, "health": 120},
    {"id": "pump-b", "kind": "turbine", "col": 6, "row": 5},
    {"id": "relay-a", "kind": "relay", "col": 5, "row": 8, "health": 40}
  ],
  "containers": [
    {"id": "cache-a", "col": 4, "row": 2, "packs": 3},
    {"id": "cache-b", "col": 6, "row": 2, "packs": 3},
    {"id": "cache-empty", "col": 5, "row": 3, "packs": 0}
  ]
}`

func TestScenarioLayout(t *testing.T) {
	w := newScenarioWorld(t, layoutFixture)

	if got := len(w.Structures()); got != 3 {
		t.Fatalf("expected 3 structures, got %d", got)
	}
	full, ok := w.StructureByID("pump-b")
	if !ok || full.Health != 500 {
		t.Fatalf("expected omitted health to default to the kind maximum, got %+v", full)
	}
	if !w.TileBlocked(TilePos{Col: 4, Row: 5}) {
		t.Fatalf("turbines block navigation")
	}
	if w.TileBlocked(TilePos{Col: 5, Row: 8}) {
		t.Fatalf("relays must not block navigation")
	}
	if !w.TileBlocked(TilePos{Col: 1, Row: 1}) || !w.TileBlocked(TilePos{Col: 4, Row: 2}) {
		t.Fatalf("obstacles and containers block navigation")
	}

	if got := len(w.StructuresOfKind("turbine")); got != 2 {
		t.Fatalf("expected 2 turbines, got %d", got)
	}
	if got := w.HighestHealthOfKind("turbine"); got != 500 {
		t.Fatalf("expected highest turbine health 500, got %f", got)
	}
}

func TestScenarioRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	bad := `{"structures": [{"kind": "fortress", "col": 2, "row": 2}]}`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ScenarioPath = path
	if _, err := New(cfg, Deps{Kinds: testKinds}); err == nil {
		t.Fatalf("expected an error for an unknown structure kind")
	}
}

func TestDamagedStructuresFilters(t *testing.T) {
	w := newScenarioWorld(t, layoutFixture)
	maxOf := func(kind string) float64 {
		switch kind {
		case "turbine":
			return 500
		case "relay":
			return 200
		}
		return 0
	}

	center := TilePos{Col: 5, Row: 5}.Center()
	damaged := w.DamagedStructures(center, 10, maxOf)
	if len(damaged) != 2 {
		t.Fatalf("expected pump-a and relay-a, got %+v", damaged)
	}
	if damaged[0].ID != "pump-a" || damaged[1].ID != "relay-a" {
		t.Fatalf("expected ID-ordered results, got %+v", damaged)
	}

	// A tight radius keeps only the nearby pump.
	near := w.DamagedStructures(center, 1.5, maxOf)
	if len(near) != 1 || near[0].ID != "pump-a" {
		t.Fatalf("expected only pump-a within 1.5 tiles, got %+v", near)
	}

	// Kinds the resolver cannot price are never reported.
	none := w.DamagedStructures(center, 10, func(string) float64 { return 0 })
	if len(none) != 0 {
		t.Fatalf("expected no repairable structures, got %+v", none)
	}
}

func TestStructureHealthOps(t *testing.T) {
	w := newScenarioWorld(t, layoutFixture)

	if !w.SetStructureHealth("pump-a", 450) {
		t.Fatalf("expected health write to apply")
	}
	if w.SetStructureHealth("pump-a", 450) {
		t.Fatalf("expected identical write to report no change")
	}
	if w.SetStructureHealth("pump-a", math.NaN()) {
		t.Fatalf("expected NaN to be rejected")
	}
	if got, _ := w.StructureByID("pump-a"); got.Health != 450 {
		t.Fatalf("expected health 450, got %f", got.Health)
	}

	if !w.DamageStructure("pump-a", 1000) {
		t.Fatalf("expected damage to apply")
	}
	if got, _ := w.StructureByID("pump-a"); got.Health != 0 {
		t.Fatalf("expected health floored at 0, got %f", got.Health)
	}
	if w.DamageStructure("missing", 10) {
		t.Fatalf("expected damage on unknown structure to fail")
	}
}

func TestSupplySources(t *testing.T) {
	w := newScenarioWorld(t, layoutFixture)
	item := w.PackItem()

	if got := w.ContainerHolds("cache-a", item); got != 3 {
		t.Fatalf("expected 3 packs in cache-a, got %d", got)
	}

	// cache-empty is nearest to (5,3) but holds nothing.
	id, ok := w.NearestStockedContainer(TilePos{Col: 5, Row: 3}.Center(), item)
	if !ok || id == "cache-empty" {
		t.Fatalf("expected a stocked container, got %q ok=%v", id, ok)
	}
	// Equidistant caches fall back to the smaller ID.
	id, ok = w.NearestStockedContainer(TilePos{Col: 5, Row: 2}.Center(), item)
	if !ok || id != "cache-a" {
		t.Fatalf("expected cache-a on the distance tie, got %q", id)
	}

	if got := w.TakeFromContainer("cache-a", item, 5); got != 3 {
		t.Fatalf("expected to drain 3 packs, got %d", got)
	}
	if id, ok := w.NearestStockedContainer(TilePos{Col: 4, Row: 2}.Center(), item); !ok || id != "cache-b" {
		t.Fatalf("expected cache-b once cache-a drained, got %q ok=%v", id, ok)
	}

	if !w.StockContainer("cache-a", item, 2) {
		t.Fatalf("expected restock to apply")
	}
	snapshot, ok := w.ContainerByID("cache-a")
	if !ok || snapshot.Inventory.CountOf(item) != 2 {
		t.Fatalf("expected restocked snapshot with 2 packs, got %+v ok=%v", snapshot, ok)
	}
	snapshot.Inventory.RemoveOfType(item, 2)
	if got := w.ContainerHolds("cache-a", item); got != 2 {
		t.Fatalf("snapshot mutation must not reach the live container, got %d", got)
	}

	w.AddOwner("owner-1")
	held := w.ActorHolds("owner-1", item)
	if held == 0 {
		t.Fatalf("expected starting packs on the owner")
	}
	if got := w.TakeFromActor("owner-1", item, held+5); got != held {
		t.Fatalf("expected to drain %d packs, got %d", held, got)
	}
	if !w.GrantToActor("owner-1", item, 2) || w.ActorHolds("owner-1", item) != 2 {
		t.Fatalf("expected grant to restock the owner")
	}
}

func TestPlanPathUsesLiveLayout(t *testing.T) {
	w := newScenarioWorld(t, layoutFixture)

	// Route across the map; the path must avoid every blocking tile.
	start := TilePos{Col: 0, Row: 0}.Center()
	goal := TilePos{Col: 9, Row: 9}.Center()
	path, ok := w.PlanPath(start, goal, 8)
	if !ok || len(path) == 0 {
		t.Fatalf("expected a path across the scenario layout")
	}
	if path[len(path)-1] != goal {
		t.Fatalf("expected exact arrival, got %+v", path[len(path)-1])
	}
	for i, wp := range path {
		if w.TileBlocked(TileOf(wp)) {
			t.Fatalf("waypoint %d at %+v sits on a blocked tile", i, wp)
		}
	}
}
