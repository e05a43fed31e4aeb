package sim

// SlotInfo is a view of the configured population of an array-like slot.
type SlotInfo struct {
	owner     *BaseComponent
	slot      string
	max       int
	populated map[int]bool
}

// Slot returns the slot name.
func (si *SlotInfo) Slot() string { return si.slot }

// MaxPopulatedSlotNumber returns the highest configured index.
func (si *SlotInfo) MaxPopulatedSlotNumber() int { return si.max }

// IsPopulated reports whether index n is configured.
func (si *SlotInfo) IsPopulated(n int) bool { return si.populated[n] }

// IsAllPopulated reports whether every index from 0 to the maximum is configured.
func (si *SlotInfo) IsAllPopulated() bool {
	for i := 0; i <= si.max; i++ {
		if !si.populated[i] {
			return false
		}
	}
	return true
}

// Create loads the sub-component configured at index n, or returns nil, nil for an
// empty index.
func (si *SlotInfo) Create(n int, share ShareFlags, params *Params) (Component, error) {
	return si.owner.LoadNamedSubComponentAt(si.slot, n, share, params)
}

// CreateAll loads every configured index. The result is indexed by slot number;
// empty indices hold nil.
func (si *SlotInfo) CreateAll(share ShareFlags, params *Params) ([]Component, error) {
	out := make([]Component, si.max+1)
	for i := 0; i <= si.max; i++ {
		if !si.populated[i] {
			continue
		}
		c, err := si.Create(i, share, params)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
