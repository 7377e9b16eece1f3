package world

import (
	"fmt"

	"mendbots/server/internal/state"
)

// Container is a stationary supply cache bots draw repair packs from.
// Containers block navigation like any other physical placement.
type Container struct {
	ID        string          `json:"id"`
	Pos       Vec2            `json:"pos"`
	Inventory state.Inventory `json:"inventory"`
}

// ContainerByID returns a copy of the container record with its
// inventory deep-copied.
func (w *World) ContainerByID(id string) (Container, bool) {
	if w == nil {
		return Container{}, false
	}
	c, ok := w.containers[id]
	if !ok {
		return Container{}, false
	}
	snapshot := *c
	snapshot.Inventory = c.Inventory.Clone()
	return snapshot, true
}

// Containers returns copies of every container, ordered by ID.
func (w *World) Containers() []Container {
	if w == nil {
		return nil
	}
	out := make([]Container, 0, len(w.containerIDs))
	for _, id := range w.containerIDs {
		c := w.containers[id]
		snapshot := *c
		snapshot.Inventory = c.Inventory.Clone()
		out = append(out, snapshot)
	}
	return out
}

// ContainerHolds reports how many units of the item the container
// stocks.
func (w *World) ContainerHolds(id string, item state.ItemType) int {
	if w == nil {
		return 0
	}
	c, ok := w.containers[id]
	if !ok {
		return 0
	}
	return c.Inventory.CountOf(item)
}

// TakeFromContainer removes up to quantity units of the item from the
// container and returns how many were removed.
func (w *World) TakeFromContainer(id string, item state.ItemType, quantity int) int {
	if w == nil {
		return 0
	}
	c, ok := w.containers[id]
	if !ok {
		return 0
	}
	return c.Inventory.RemoveOfType(item, quantity)
}

// StockContainer adds units of the item to the container.
func (w *World) StockContainer(id string, item state.ItemType, quantity int) bool {
	if w == nil || quantity <= 0 {
		return false
	}
	c, ok := w.containers[id]
	if !ok {
		return false
	}
	_, err := c.Inventory.AddStack(state.ItemStack{Type: item, Quantity: quantity})
	return err == nil
}

// NearestStockedContainer finds the container closest to the given
// position that holds at least one unit of the item. Squared distance
// decides; equal distances fall back to the smaller ID.
func (w *World) NearestStockedContainer(near Vec2, item state.ItemType) (string, bool) {
	if w == nil {
		return "", false
	}
	bestID := ""
	bestDist := 0.0
	for _, id := range w.containerIDs {
		c := w.containers[id]
		if c.Inventory.CountOf(item) <= 0 {
			continue
		}
		d := DistSq(c.Pos, near)
		if bestID == "" || d < bestDist {
			bestID = id
			bestDist = d
		}
	}
	return bestID, bestID != ""
}

// GenerateContainers places stocked supply containers on free tiles.
func GenerateContainers(gen LayoutGenerator, count int, used map[TilePos]struct{}) []Container {
	if gen == nil || count <= 0 {
		return nil
	}

	cfg := gen.Config()
	rng := gen.SubsystemRNG("containers")
	containers := make([]Container, 0, count)
	attempts := 0
	maxAttempts := count * 20

	for len(containers) < count && attempts < maxAttempts {
		attempts++

		tile, ok := randomFreeTile(gen, rng, used)
		if !ok {
			continue
		}

		inv := state.NewInventory()
		if cfg.ContainerPacks > 0 {
			if _, err := inv.AddStack(state.ItemStack{
				Type:     state.ItemType(cfg.PackItem),
				Quantity: cfg.ContainerPacks,
			}); err != nil {
				continue
			}
		}

		containers = append(containers, Container{
			ID:        fmt.Sprintf("container-%d", len(containers)+1),
			Pos:       tile.Center(),
			Inventory: inv,
		})
		used[tile] = struct{}{}
	}

	return containers
}
