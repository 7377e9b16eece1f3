package world

import (
	"fmt"
	"math/rand"
	"sort"

	"mendbots/server/internal/state"
	"mendbots/server/logging"
)

// RNGFactory produces deterministic RNG instances for world subsystems.
type RNGFactory func(rootSeed, label string) *rand.Rand

// Deps bundles runtime dependencies required to construct a World
// instance. Kinds is the structure catalog projection used during
// layout generation.
type Deps struct {
	Publisher logging.Publisher
	RNG       RNGFactory
	Kinds     []StructureKind
}

// World owns the deterministic RNG root, the static layout, and every
// live actor. It performs no locking of its own; callers serialize
// access the same way the simulation loop does.
type World struct {
	config Config
	seed   string

	publisher  logging.Publisher
	rngFactory RNGFactory
	rng        *rand.Rand
	spawnRNG   *rand.Rand

	owners map[string]*state.ActorState
	bots   map[string]*state.ActorState

	obstacles    []Obstacle
	structures   map[string]*Structure
	structureIDs []string
	containers   map[string]*Container
	containerIDs []string

	blockedTiles map[TilePos]struct{}

	nextBotID uint64
}

// New constructs a world with normalized configuration, seeded RNG, and
// a generated or scenario-provided layout.
func New(cfg Config, deps Deps) (*World, error) {
	normalized := cfg.normalized()

	factory := deps.RNG
	if factory == nil {
		factory = NewDeterministicRNG
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher{}
	}

	world := &World{
		config:       normalized,
		seed:         normalized.Seed,
		publisher:    publisher,
		rngFactory:   factory,
		rng:          factory(normalized.Seed, "world"),
		owners:       make(map[string]*state.ActorState),
		bots:         make(map[string]*state.ActorState),
		structures:   make(map[string]*Structure),
		containers:   make(map[string]*Container),
		blockedTiles: make(map[TilePos]struct{}),
	}
	world.spawnRNG = world.SubsystemRNG("spawn")

	if normalized.ScenarioPath != "" {
		scenario, err := LoadScenario(normalized.ScenarioPath)
		if err != nil {
			return nil, err
		}
		if err := scenario.validate(normalized.Width, normalized.Height, deps.Kinds); err != nil {
			return nil, err
		}
		world.applyScenario(scenario, deps.Kinds)
	} else {
		used := make(map[TilePos]struct{})
		world.obstacles = GenerateObstacles(world, normalized.ObstacleCount, used)
		for _, s := range GenerateStructures(world, deps.Kinds, normalized.StructureCount, used) {
			placed := s
			world.structures[s.ID] = &placed
			world.structureIDs = append(world.structureIDs, s.ID)
		}
		for _, c := range GenerateContainers(world, normalized.ContainerCount, used) {
			placed := c
			world.containers[c.ID] = &placed
			world.containerIDs = append(world.containerIDs, c.ID)
		}
	}
	sort.Strings(world.structureIDs)
	sort.Strings(world.containerIDs)
	world.rebuildBlockedTiles()

	return world, nil
}

func (w *World) applyScenario(scenario Scenario, kinds []StructureKind) {
	byKind := make(map[string]StructureKind, len(kinds))
	for _, kind := range kinds {
		byKind[kind.Kind] = kind
	}

	for i, obs := range scenario.Obstacles {
		kind := obs.Kind
		if kind == "" {
			kind = ObstacleKindBoulder
		}
		w.obstacles = append(w.obstacles, Obstacle{
			ID:   fmt.Sprintf("obstacle-%d", i+1),
			Kind: kind,
			Pos:  TilePos{Col: obs.Col, Row: obs.Row}.Center(),
		})
	}
	for i, st := range scenario.Structures {
		kind := byKind[st.Kind]
		id := st.ID
		if id == "" {
			id = fmt.Sprintf("structure-%d", i+1)
		}
		health := kind.MaxHealth
		if st.Health != nil {
			health = *st.Health
		}
		placed := &Structure{
			ID:       id,
			Kind:     kind.Kind,
			Pos:      TilePos{Col: st.Col, Row: st.Row}.Center(),
			Health:   health,
			Blocking: kind.Blocking,
		}
		w.structures[id] = placed
		w.structureIDs = append(w.structureIDs, id)
	}
	for i, c := range scenario.Containers {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("container-%d", i+1)
		}
		inv := state.NewInventory()
		if c.Packs > 0 {
			inv.AddStack(state.ItemStack{Type: w.PackItem(), Quantity: c.Packs})
		}
		placed := &Container{ID: id, Pos: TilePos{Col: c.Col, Row: c.Row}.Center(), Inventory: inv}
		w.containers[id] = placed
		w.containerIDs = append(w.containerIDs, id)
	}
}

// rebuildBlockedTiles derives the navigation blocker set from the
// current layout. Obstacles and containers always block; structures
// block according to their kind.
func (w *World) rebuildBlockedTiles() {
	w.blockedTiles = make(map[TilePos]struct{})
	for _, obs := range w.obstacles {
		w.blockedTiles[TileOf(obs.Pos)] = struct{}{}
	}
	for _, s := range w.structures {
		if s.Blocking {
			w.blockedTiles[TileOf(s.Pos)] = struct{}{}
		}
	}
	for _, c := range w.containers {
		w.blockedTiles[TileOf(c.Pos)] = struct{}{}
	}
}

// Config returns the normalized configuration captured at construction
// time.
func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.config
}

// Seed reports the deterministic seed applied to the world RNG
// hierarchy.
func (w *World) Seed() string {
	if w == nil {
		return ""
	}
	return w.seed
}

// Dimensions reports the world extent in tiles along each axis.
func (w *World) Dimensions() (float64, float64) {
	if w == nil {
		return 0, 0
	}
	return w.config.Width, w.config.Height
}

// PackItem is the item type containers and owner inventories stock.
func (w *World) PackItem() state.ItemType {
	if w == nil {
		return state.ItemType(DefaultPackItem)
	}
	return state.ItemType(w.config.PackItem)
}

// RNG exposes the root RNG instance seeded for the world.
func (w *World) RNG() *rand.Rand {
	if w == nil {
		return nil
	}
	if w.rng == nil {
		w.rng = w.ensureFactory()(w.seed, "world")
	}
	return w.rng
}

// SubsystemRNG returns a deterministic RNG derived from the world seed.
func (w *World) SubsystemRNG(label string) *rand.Rand {
	if w == nil {
		return NewDeterministicRNG(DefaultSeed, label)
	}
	seed := w.seed
	if seed == "" {
		seed = DefaultSeed
	}
	return w.ensureFactory()(seed, label)
}

func (w *World) ensureFactory() RNGFactory {
	if w == nil || w.rngFactory == nil {
		return NewDeterministicRNG
	}
	return w.rngFactory
}

// TileBlocked reports whether a tile holds a navigation blocker.
func (w *World) TileBlocked(t TilePos) bool {
	if w == nil {
		return false
	}
	_, hit := w.blockedTiles[t]
	return hit
}

// BlockingPositions returns the positions of all blockers inside the
// query area. It feeds occupancy snapshots for path planning.
func (w *World) BlockingPositions(area Rect) []Vec2 {
	if w == nil {
		return nil
	}
	positions := make([]Vec2, 0)
	for tile := range w.blockedTiles {
		center := tile.Center()
		if area.Contains(center) {
			positions = append(positions, center)
		}
	}
	return positions
}

// PlanPath builds a fresh occupancy snapshot around the endpoints and
// searches it. Margin controls how far beyond the endpoint bounding box
// the snapshot extends.
func (w *World) PlanPath(start, goal Vec2, margin int) ([]Vec2, bool) {
	if w == nil {
		return nil, false
	}
	return BuildOccupancy(w, start, goal, margin).FindPath(start, goal)
}

// Obstacles returns a copy of the static obstacle layout.
func (w *World) Obstacles() []Obstacle {
	if w == nil {
		return nil
	}
	return append([]Obstacle(nil), w.obstacles...)
}
