package world

import "math"

// NavCellSize is the edge length of one navigation tile in world units.
// Tile centers sit on integer coordinates.
const NavCellSize = 1.0

// TilePos addresses one navigation tile.
type TilePos struct {
	Col int
	Row int
}

// TileOf maps a world position onto the tile whose center is nearest,
// rounding each coordinate independently.
func TileOf(p Vec2) TilePos {
	return TilePos{
		Col: int(math.Round(p.X / NavCellSize)),
		Row: int(math.Round(p.Y / NavCellSize)),
	}
}

// Center returns the world position at the middle of the tile.
func (t TilePos) Center() Vec2 {
	return Vec2{X: float64(t.Col) * NavCellSize, Y: float64(t.Row) * NavCellSize}
}
