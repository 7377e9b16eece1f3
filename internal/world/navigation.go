package world

import (
	"container/heap"
	"math"
)

type navNeighbor struct {
	col      int
	row      int
	cost     float64
	diagonal bool
}

var navNeighborOffsets = [...]navNeighbor{
	{col: 0, row: -1, cost: 1, diagonal: false},
	{col: 1, row: 0, cost: 1, diagonal: false},
	{col: 0, row: 1, cost: 1, diagonal: false},
	{col: -1, row: 0, cost: 1, diagonal: false},
	{col: 1, row: -1, cost: math.Sqrt2, diagonal: true},
	{col: 1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: -1, cost: math.Sqrt2, diagonal: true},
}

// canTraverseDiagonal rejects a diagonal step when either flanking
// cardinal tile is blocked, so paths never cut corners.
func (g *OccupancyGrid) canTraverseDiagonal(current TilePos, delta navNeighbor) bool {
	if !delta.diagonal {
		return true
	}
	horiz := TilePos{Col: current.Col + delta.col, Row: current.Row}
	vert := TilePos{Col: current.Col, Row: current.Row + delta.row}
	return !g.Blocked(horiz) && !g.Blocked(vert)
}

// chebyshev is the search heuristic: the larger of the absolute
// coordinate deltas. It never overestimates since a diagonal step
// shortens both axes at once.
func chebyshev(a, b TilePos) float64 {
	dx := math.Abs(float64(a.Col - b.Col))
	dy := math.Abs(float64(a.Row - b.Row))
	if dx > dy {
		return dx
	}
	return dy
}

type pathNode struct {
	tile   TilePos
	g      float64
	f      float64
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// search runs A* from start toward goal. It returns the expanded tile
// chain (start first) and whether the goal itself was reached. When the
// goal is unreachable the chain leads to the reachable tile closest to
// it by heuristic; a nil chain means not even partial progress exists.
func (g *OccupancyGrid) search(start, goal TilePos) ([]TilePos, bool) {
	open := &pathQueue{}
	heap.Init(open)
	startNode := &pathNode{tile: start, g: 0, f: chebyshev(start, goal)}
	heap.Push(open, startNode)
	gScore := map[TilePos]float64{start: 0}
	closed := make(map[TilePos]struct{})

	best := startNode
	bestH := chebyshev(start, goal)

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.tile]; seen {
			continue
		}
		closed[current.tile] = struct{}{}

		if current.tile == goal {
			return reconstructPath(current), true
		}
		if h := chebyshev(current.tile, goal); h < bestH {
			bestH = h
			best = current
		}

		for _, delta := range navNeighborOffsets {
			if delta.diagonal && !g.canTraverseDiagonal(current.tile, delta) {
				continue
			}
			next := TilePos{Col: current.tile.Col + delta.col, Row: current.tile.Row + delta.row}
			if g.Blocked(next) {
				continue
			}
			if _, seen := closed[next]; seen {
				continue
			}
			tentativeG := current.g + delta.cost
			if prev, ok := gScore[next]; ok && tentativeG >= prev {
				continue
			}
			gScore[next] = tentativeG
			heap.Push(open, &pathNode{
				tile:   next,
				g:      tentativeG,
				f:      tentativeG + chebyshev(next, goal),
				parent: current,
			})
		}
	}

	if best.tile == start {
		return nil, false
	}
	return reconstructPath(best), false
}

func reconstructPath(end *pathNode) []TilePos {
	if end == nil {
		return nil
	}
	path := make([]TilePos, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.tile)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindPath plans from start to goal over the grid snapshot.
//
// If both positions share a tile the path is just the exact goal. A
// blocked start tile fails outright. A blocked goal tile does not: the
// search runs anyway and, like any unreachable goal, yields a partial
// path to the reachable tile nearest the goal. The returned waypoints
// are tile centers with the start tile omitted; only a full path has
// its final waypoint replaced by the exact goal position.
func (g *OccupancyGrid) FindPath(start, goal Vec2) ([]Vec2, bool) {
	if g == nil {
		return nil, false
	}
	startTile := TileOf(start)
	goalTile := TileOf(goal)
	if startTile == goalTile {
		return []Vec2{goal}, true
	}
	if g.Blocked(startTile) {
		return nil, false
	}

	nodes, reached := g.search(startTile, goalTile)
	if len(nodes) < 2 {
		return nil, false
	}

	path := make([]Vec2, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		path = append(path, nodes[i].Center())
	}
	if reached {
		path[len(path)-1] = goal
	}
	return path, true
}

// pathTravelCost sums the segment lengths of a path walked from start.
func pathTravelCost(start Vec2, path []Vec2) float64 {
	cost := 0.0
	prev := start
	for _, node := range path {
		cost += math.Hypot(node.X-prev.X, node.Y-prev.Y)
		prev = node
	}
	return cost
}
