package engine

import (
	"errors"
	"fmt"
)

// ErrTierFull is returned when adding to a tier that is at capacity.
var ErrTierFull = errors.New("tier full")

// Tier is a dedicated, ideal-condition storage pool for one temperature.
type Tier struct {
	location Location
	capacity int
	items    map[string]*StoredItem
}

// NewTier creates an empty tier at loc holding at most capacity items.
func NewTier(loc Location, capacity int) *Tier {
	return &Tier{
		location: loc,
		capacity: capacity,
		items:    make(map[string]*StoredItem, capacity),
	}
}

func (t *Tier) Location() Location { return t.location }
func (t *Tier) Capacity() int { return t.capacity }
func (t *Tier) Len() int { return len(t.items) }

// HasSpace reports whether another item fits.
func (t *Tier) HasSpace() bool {
	return len(t.items) < t.capacity
}

// Add stores s. Only items whose ideal tier is this one are accepted.
func (t *Tier) Add(s *StoredItem) error {
	if !isIdeal(t.location, s.item.Temperature) {
		return fmt.Errorf("add %s to %s: temperature %s does not belong here", s.item.ID, t.location, s.item.Temperature)
	}
	if !t.HasSpace() {
		return fmt.Errorf("add %s to %s: %w", s.item.ID, t.location, ErrTierFull)
	}
	t.items[s.item.ID] = s
	return nil
}

// Remove takes id out of the tier and deactivates it. Returns nil if absent.
func (t *Tier) Remove(id string) *StoredItem {
	s, ok := t.items[id]
	if !ok {
		return nil
	}
	delete(t.items, id)
	s.Deactivate()
	return s
}

// Items returns the tier's occupants in no particular order.
func (t *Tier) Items() []*StoredItem {
	out := make([]*StoredItem, 0, len(t.items))
	for _, s := range t.items {
		out = append(out, s)
	}
	return out
}
