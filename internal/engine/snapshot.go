package engine

import (
	"cmp"
	"slices"
)

// Occupant is a point-in-time view of one stored item.
type Occupant struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Temperature Temperature `json:"temperature"`
	PlacedAt    int64       `json:"placed_at"`
	Remaining   float64     `json:"remaining_freshness"`
	Active      bool        `json:"active"`
}

// Pool describes one storage location's occupancy.
type Pool struct {
	Location  Location   `json:"location"`
	Capacity  int        `json:"capacity"`
	Occupants []Occupant `json:"occupants"`
}

// Snapshot is a consistent view of every pool.
type Snapshot struct {
	Taken int64  `json:"taken"`
	Pools []Pool `json:"pools"`
}

// Snapshot settles every stored item at the current time and reports each
// pool's occupants, ordered by id within tiers and by arrival on the shelf.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.NowMicros()
	snap := Snapshot{Taken: now}

	for _, loc := range idealTiers {
		t := e.tiers[loc]
		items := t.Items()
		slices.SortFunc(items, func(a, b *StoredItem) int {
			return cmp.Compare(a.ID(), b.ID())
		})
		snap.Pools = append(snap.Pools, pool(loc, t.Capacity(), items, now))
	}
	snap.Pools = append(snap.Pools, pool(Shelf, e.shelf.Capacity(), e.shelf.Occupants(), now))
	return snap
}

func pool(loc Location, capacity int, items []*StoredItem, now int64) Pool {
	p := Pool{Location: loc, Capacity: capacity, Occupants: make([]Occupant, 0, len(items))}
	for _, s := range items {
		s.UpdateFreshness(now)
		p.Occupants = append(p.Occupants, Occupant{
			ID:          s.ID(),
			Name:        s.Item().Name,
			Temperature: s.Item().Temperature,
			PlacedAt:    s.PlacedAt(),
			Remaining:   s.RemainingFreshness(),
			Active:      s.Active(),
		})
	}
	return p
}
