package world

import (
	"fmt"
	"math"
	"math/rand"
)

// StructureKind describes one buildable kind: its catalog identity, the
// health it repairs up to, and whether it blocks navigation.
type StructureKind struct {
	Kind      string  `json:"kind"`
	MaxHealth float64 `json:"maxHealth"`
	Blocking  bool    `json:"blocking"`
}

// Structure is a stationary serviceable entity occupying one tile.
// Health is current hit points; the maximum is resolved by callers
// against the structure catalog, not stored here.
type Structure struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Pos      Vec2    `json:"pos"`
	Health   float64 `json:"health"`
	Blocking bool    `json:"blocking"`
}

// GenerateStructures places serviceable structures on free tiles. A
// DamagedRatio share of them spawns below full health so freshly
// deployed bots have work waiting.
func GenerateStructures(gen LayoutGenerator, kinds []StructureKind, count int, used map[TilePos]struct{}) []Structure {
	if gen == nil || count <= 0 || len(kinds) == 0 {
		return nil
	}
	cfg := gen.Config()
	if !cfg.Structures {
		return nil
	}

	rng := gen.SubsystemRNG("structures")
	structures := make([]Structure, 0, count)
	attempts := 0
	maxAttempts := count * 20

	for len(structures) < count && attempts < maxAttempts {
		attempts++

		tile, ok := randomFreeTile(gen, rng, used)
		if !ok {
			continue
		}

		kind := kinds[rng.Intn(len(kinds))]
		health := kind.MaxHealth
		if rng.Float64() < cfg.DamagedRatio {
			health = kind.MaxHealth * RandomDistance(rng, 0.15, 0.85)
		}

		structures = append(structures, Structure{
			ID:       fmt.Sprintf("structure-%d", len(structures)+1),
			Kind:     kind.Kind,
			Pos:      tile.Center(),
			Health:   health,
			Blocking: kind.Blocking,
		})
		used[tile] = struct{}{}
	}

	return structures
}

// applyStructureHealth writes a validated health value onto the
// structure and reports whether anything changed. Non-finite input is
// rejected, negative input clamps to zero.
func applyStructureHealth(s *Structure, health float64) bool {
	if s == nil {
		return false
	}
	if math.IsNaN(health) || math.IsInf(health, 0) {
		return false
	}
	if health < 0 {
		health = 0
	}
	if math.Abs(s.Health-health) <= HealthEpsilon {
		return false
	}
	s.Health = health
	return true
}

// StructureByID returns a copy of the structure record.
func (w *World) StructureByID(id string) (Structure, bool) {
	if w == nil {
		return Structure{}, false
	}
	s, ok := w.structures[id]
	if !ok {
		return Structure{}, false
	}
	return *s, true
}

// Structures returns copies of every structure, ordered by ID.
func (w *World) Structures() []Structure {
	if w == nil {
		return nil
	}
	out := make([]Structure, 0, len(w.structureIDs))
	for _, id := range w.structureIDs {
		out = append(out, *w.structures[id])
	}
	return out
}

// StructuresOfKind returns copies of every structure of the kind,
// ordered by ID.
func (w *World) StructuresOfKind(kind string) []Structure {
	if w == nil {
		return nil
	}
	out := make([]Structure, 0)
	for _, id := range w.structureIDs {
		if s := w.structures[id]; s.Kind == kind {
			out = append(out, *s)
		}
	}
	return out
}

// DamagedStructures returns copies of the structures within radius of
// center whose health sits below the maximum reported by maxOf. Kinds
// maxOf resolves to zero or less are skipped as unrepairable. Results
// are ordered by ID.
func (w *World) DamagedStructures(center Vec2, radius float64, maxOf func(kind string) float64) []Structure {
	if w == nil || maxOf == nil || radius < 0 {
		return nil
	}
	radiusSq := radius * radius
	out := make([]Structure, 0)
	for _, id := range w.structureIDs {
		s := w.structures[id]
		if DistSq(s.Pos, center) > radiusSq {
			continue
		}
		max := maxOf(s.Kind)
		if max <= 0 {
			continue
		}
		if s.Health+HealthEpsilon >= max {
			continue
		}
		out = append(out, *s)
	}
	return out
}

// SetStructureHealth overwrites a structure's health and reports
// whether it changed.
func (w *World) SetStructureHealth(id string, health float64) bool {
	if w == nil {
		return false
	}
	return applyStructureHealth(w.structures[id], health)
}

// DamageStructure reduces a structure's health by amount, stopping at
// zero.
func (w *World) DamageStructure(id string, amount float64) bool {
	if w == nil || amount <= 0 {
		return false
	}
	s, ok := w.structures[id]
	if !ok {
		return false
	}
	return applyStructureHealth(s, s.Health-amount)
}

// RandomStructureID picks a uniformly random structure using the
// provided RNG.
func (w *World) RandomStructureID(rng *rand.Rand) (string, bool) {
	if w == nil || rng == nil || len(w.structureIDs) == 0 {
		return "", false
	}
	return w.structureIDs[rng.Intn(len(w.structureIDs))], true
}

// HighestHealthOfKind reports the largest current health among live
// structures of the kind, or zero when none exist.
func (w *World) HighestHealthOfKind(kind string) float64 {
	if w == nil {
		return 0
	}
	highest := 0.0
	for _, id := range w.structureIDs {
		if s := w.structures[id]; s.Kind == kind && s.Health > highest {
			highest = s.Health
		}
	}
	return highest
}
