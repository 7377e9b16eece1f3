package state

import "fmt"

// ItemType identifies a stackable item kind.
type ItemType string

const (
	// ItemTypeRepairPack is the consumable charge carried by owners and
	// stocked in supply containers.
	ItemTypeRepairPack ItemType = "repair-pack"
)

// ItemStack is a quantity of a single item type.
type ItemStack struct {
	Type     ItemType `json:"type"`
	Quantity int      `json:"quantity"`
}

// InventorySlot binds a stack to a stable slot number.
type InventorySlot struct {
	Slot int       `json:"slot"`
	Item ItemStack `json:"item"`
}

// Inventory is an ordered list of slots. Stacks of the same type merge;
// slot numbers stay contiguous after removal.
type Inventory struct {
	Slots []InventorySlot `json:"slots"`
}

// NewInventory returns an empty inventory.
func NewInventory() Inventory {
	return Inventory{Slots: make([]InventorySlot, 0)}
}

// AddStack merges the stack into an existing slot of the same type or
// appends a new slot. It returns the slot index the stack landed in.
func (inv *Inventory) AddStack(stack ItemStack) (int, error) {
	if stack.Quantity <= 0 {
		return -1, fmt.Errorf("inventory: quantity must be positive, got %d", stack.Quantity)
	}
	if stack.Type == "" {
		return -1, fmt.Errorf("inventory: item type must not be empty")
	}
	for i := range inv.Slots {
		if inv.Slots[i].Item.Type == stack.Type {
			inv.Slots[i].Item.Quantity += stack.Quantity
			return inv.Slots[i].Slot, nil
		}
	}
	slot := len(inv.Slots)
	inv.Slots = append(inv.Slots, InventorySlot{Slot: slot, Item: stack})
	return slot, nil
}

// CountOf reports the total quantity held across slots of the given type.
func (inv *Inventory) CountOf(itemType ItemType) int {
	total := 0
	for i := range inv.Slots {
		if inv.Slots[i].Item.Type == itemType {
			total += inv.Slots[i].Item.Quantity
		}
	}
	return total
}

// RemoveOfType removes up to quantity units of the given type and returns
// how many were actually removed. Emptied slots are dropped and the
// remaining slots renumbered.
func (inv *Inventory) RemoveOfType(itemType ItemType, quantity int) int {
	if quantity <= 0 {
		return 0
	}
	removed := 0
	kept := inv.Slots[:0]
	for _, slot := range inv.Slots {
		if slot.Item.Type == itemType && removed < quantity {
			take := quantity - removed
			if take > slot.Item.Quantity {
				take = slot.Item.Quantity
			}
			slot.Item.Quantity -= take
			removed += take
		}
		if slot.Item.Quantity > 0 {
			kept = append(kept, slot)
		}
	}
	for i := range kept {
		kept[i].Slot = i
	}
	inv.Slots = kept
	return removed
}

// Clone returns a deep copy of the inventory.
func (inv Inventory) Clone() Inventory {
	clone := Inventory{Slots: make([]InventorySlot, len(inv.Slots))}
	copy(clone.Slots, inv.Slots)
	return clone
}
