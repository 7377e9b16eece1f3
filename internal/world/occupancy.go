package world

// Rect is an axis-aligned query region in world coordinates.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Contains reports whether the point lies inside the rectangle,
// boundaries included.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// BlockSource exposes the world surface occupancy snapshots are built
// from.
type BlockSource interface {
	Dimensions() (float64, float64)
	BlockingPositions(area Rect) []Vec2
}

// OccupancyGrid is a transient tile snapshot used for a single path
// query. Tiles outside its bounds count as blocked, so a path can never
// leave the region the grid was built for.
type OccupancyGrid struct {
	minCol, maxCol int
	minRow, maxRow int
	blocked        map[TilePos]struct{}
}

// NewOccupancyGrid returns an empty grid covering the inclusive tile
// bounds.
func NewOccupancyGrid(minCol, minRow, maxCol, maxRow int) *OccupancyGrid {
	return &OccupancyGrid{
		minCol:  minCol,
		maxCol:  maxCol,
		minRow:  minRow,
		maxRow:  maxRow,
		blocked: make(map[TilePos]struct{}),
	}
}

// Block marks a tile impassable.
func (g *OccupancyGrid) Block(t TilePos) {
	if g == nil || !g.InBounds(t) {
		return
	}
	g.blocked[t] = struct{}{}
}

// InBounds reports whether the tile lies inside the grid bounds.
func (g *OccupancyGrid) InBounds(t TilePos) bool {
	if g == nil {
		return false
	}
	return t.Col >= g.minCol && t.Col <= g.maxCol && t.Row >= g.minRow && t.Row <= g.maxRow
}

// Blocked reports whether the tile cannot be entered. Out-of-bounds
// tiles are blocked.
func (g *OccupancyGrid) Blocked(t TilePos) bool {
	if g == nil {
		return true
	}
	if !g.InBounds(t) {
		return true
	}
	_, hit := g.blocked[t]
	return hit
}

// BuildOccupancy snapshots the blockers relevant to one path query. The
// grid covers the bounding box of the start and goal tiles grown by
// margin plus one extra ring, clipped to the world, so searches have
// room to route around clutter near either endpoint.
func BuildOccupancy(src BlockSource, start, goal Vec2, margin int) *OccupancyGrid {
	if margin < 0 {
		margin = 0
	}

	s := TileOf(start)
	e := TileOf(goal)

	minCol := minInt(s.Col, e.Col) - margin - 1
	maxCol := maxInt(s.Col, e.Col) + margin + 1
	minRow := minInt(s.Row, e.Row) - margin - 1
	maxRow := maxInt(s.Row, e.Row) + margin + 1

	if src != nil {
		worldW, worldH := src.Dimensions()
		cols := int(worldW)
		rows := int(worldH)
		if cols > 0 && rows > 0 {
			minCol = maxInt(minCol, 0)
			minRow = maxInt(minRow, 0)
			maxCol = minInt(maxCol, cols-1)
			maxRow = minInt(maxRow, rows-1)
		}
	}

	grid := NewOccupancyGrid(minCol, minRow, maxCol, maxRow)
	if src == nil {
		return grid
	}

	half := NavCellSize / 2
	area := Rect{
		MinX: float64(minCol)*NavCellSize - half,
		MinY: float64(minRow)*NavCellSize - half,
		MaxX: float64(maxCol)*NavCellSize + half,
		MaxY: float64(maxRow)*NavCellSize + half,
	}
	for _, pos := range src.BlockingPositions(area) {
		grid.Block(TileOf(pos))
	}
	return grid
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
