package world

import (
	"fmt"
	"math/rand"
)

const (
	ObstacleKindBoulder  = "boulder"
	ObstacleKindWreckage = "wreckage"
)

// Obstacle is an immovable blocker occupying exactly one navigation
// tile. Pos is the tile center.
type Obstacle struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Pos  Vec2   `json:"pos"`
}

// LayoutGenerator describes the minimal world surface the terrain
// generators need.
type LayoutGenerator interface {
	Config() Config
	Dimensions() (float64, float64)
	SubsystemRNG(label string) *rand.Rand
}

// GenerateObstacles scatters single-tile blockers across the map,
// keeping the spawn region clear. Claimed tiles are recorded in used so
// later generators skip them.
func GenerateObstacles(gen LayoutGenerator, count int, used map[TilePos]struct{}) []Obstacle {
	if gen == nil || count <= 0 {
		return nil
	}
	if !gen.Config().Obstacles {
		return nil
	}

	rng := gen.SubsystemRNG("obstacles")
	obstacles := make([]Obstacle, 0, count)
	attempts := 0
	maxAttempts := count * 20

	for len(obstacles) < count && attempts < maxAttempts {
		attempts++

		tile, ok := randomFreeTile(gen, rng, used)
		if !ok {
			continue
		}

		kind := ObstacleKindBoulder
		if rng.Intn(3) == 0 {
			kind = ObstacleKindWreckage
		}

		obstacles = append(obstacles, Obstacle{
			ID:   fmt.Sprintf("obstacle-%d", len(obstacles)+1),
			Kind: kind,
			Pos:  tile.Center(),
		})
		used[tile] = struct{}{}
	}

	return obstacles
}

// randomFreeTile picks a uniformly random tile that is unclaimed and
// outside the spawn safe radius.
func randomFreeTile(gen LayoutGenerator, rng *rand.Rand, used map[TilePos]struct{}) (TilePos, bool) {
	worldW, worldH := gen.Dimensions()
	cols := int(worldW)
	rows := int(worldH)
	if cols <= 0 || rows <= 0 {
		return TilePos{}, false
	}

	tile := TilePos{Col: rng.Intn(cols), Row: rng.Intn(rows)}
	if _, taken := used[tile]; taken {
		return TilePos{}, false
	}

	spawn := TileOf(Vec2{X: worldW / 2, Y: worldH / 2})
	if Dist(tile.Center(), spawn.Center()) < SpawnSafeRadius {
		return TilePos{}, false
	}
	return tile, true
}
