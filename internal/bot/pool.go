package bot

import (
	"math"

	state "mendbots/server/internal/state"
)

// DefaultPackCapacity is the health-point budget one repair pack converts
// into.
const DefaultPackCapacity = 100.0

// SupplyPool converts discrete repair packs into a spendable health-point
// budget. Each owner session holds one pool; it persists across cycles and
// refills lazily when a repair request outruns the remaining capacity.
type SupplyPool struct {
	Item         state.ItemType
	PackCapacity float64
	Capacity     float64

	preferred string
	warned    bool
}

// Receipt reports the outcome of a single Consume call.
type Receipt struct {
	Granted        float64
	ContainerPacks int
	InventoryPacks int
	ContainerID    string
	Exhausted      bool
}

// NewSupplyPool returns an empty pool for the given consumable.
func NewSupplyPool(item state.ItemType, packCapacity float64) *SupplyPool {
	if packCapacity <= 0 {
		packCapacity = DefaultPackCapacity
	}
	return &SupplyPool{Item: item, PackCapacity: packCapacity}
}

// Consume grants up to requested health-points. When the pool cannot cover
// the request it loads at most one pack from the preferred container (or the
// nearest stocked one, which becomes preferred), then tops up the remaining
// deficit with whole packs from the owner's inventory. The grant is
// min(requested, capacity); Exhausted fires once per dry spell when a
// positive request yields nothing.
func (p *SupplyPool) Consume(requested float64, ownerID string, near Vec2, src Supplies) Receipt {
	if p == nil || requested <= 0 || math.IsNaN(requested) || math.IsInf(requested, 0) {
		return Receipt{}
	}

	var receipt Receipt
	if p.Capacity < requested && src != nil {
		p.refillFromContainer(&receipt, near, src)
		p.refillFromInventory(&receipt, requested, ownerID, src)
	}

	granted := math.Min(requested, p.Capacity)
	if granted > 0 {
		p.Capacity -= granted
		receipt.Granted = granted
	}

	if granted > 0 || p.Capacity > 0 {
		p.warned = false
	} else if !p.warned {
		p.warned = true
		receipt.Exhausted = true
	}
	return receipt
}

// refillFromContainer loads at most one pack per call so a single repair
// burst cannot drain a shared container.
func (p *SupplyPool) refillFromContainer(receipt *Receipt, near Vec2, src Supplies) {
	if p.preferred != "" && src.ContainerHolds(p.preferred, p.Item) <= 0 {
		p.preferred = ""
	}
	if p.preferred == "" {
		id, ok := src.NearestStockedContainer(near, p.Item)
		if !ok {
			return
		}
		p.preferred = id
	}
	taken := src.TakeFromContainer(p.preferred, p.Item, 1)
	if taken <= 0 {
		return
	}
	p.Capacity += float64(taken) * p.PackCapacity
	receipt.ContainerPacks = taken
	receipt.ContainerID = p.preferred
}

// refillFromInventory withdraws whole packs from the owner until the deficit
// is covered or the inventory runs out.
func (p *SupplyPool) refillFromInventory(receipt *Receipt, requested float64, ownerID string, src Supplies) {
	deficit := requested - p.Capacity
	if deficit <= 0 || ownerID == "" {
		return
	}
	packs := int(math.Ceil(deficit / p.PackCapacity))
	if packs <= 0 {
		return
	}
	taken := src.TakeFromActor(ownerID, p.Item, packs)
	if taken <= 0 {
		return
	}
	p.Capacity += float64(taken) * p.PackCapacity
	receipt.InventoryPacks = taken
}

// PreferredContainer exposes the cached refill source, empty when none is
// cached.
func (p *SupplyPool) PreferredContainer() string {
	if p == nil {
		return ""
	}
	return p.preferred
}
