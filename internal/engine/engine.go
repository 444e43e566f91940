package engine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateItem is returned when placing an id the engine already holds.
var ErrDuplicateItem = errors.New("duplicate item")

// Capacities sizes every storage pool.
type Capacities struct {
	Heater  int
	Cooler  int
	Freezer int
	Shelf   int
}

// DefaultCapacities matches the reference kitchen: six per tier, twelve on the shelf.
func DefaultCapacities() Capacities {
	return Capacities{Heater: 6, Cooler: 6, Freezer: 6, Shelf: 12}
}

// Validate rejects non-positive capacities.
func (c Capacities) Validate() error {
	for _, p := range []struct {
		name string
		n    int
	}{
		{"heater", c.Heater},
		{"cooler", c.Cooler},
		{"freezer", c.Freezer},
		{"shelf", c.Shelf},
	} {
		if p.n <= 0 {
			return fmt.Errorf("%s capacity must be positive, got %d", p.name, p.n)
		}
	}
	return nil
}

// Engine owns every storage pool, the master index and the action ledger.
// Place, Pickup, Ledger and Snapshot are serialized by one mutex, so the
// ledger is a total order of calls.
type Engine struct {
	mu     sync.Mutex
	clock  Clock
	tiers  map[Location]*Tier
	shelf  *OverflowShelf
	index  map[string]*StoredItem
	ledger []Action
}

// New creates an Engine with the given pool sizes and time source.
func New(caps Capacities, clock Clock) (*Engine, error) {
	if err := caps.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if clock == nil {
		return nil, fmt.Errorf("new engine: clock is required")
	}
	return &Engine{
		clock: clock,
		tiers: map[Location]*Tier{
			Heater:  NewTier(Heater, caps.Heater),
			Cooler:  NewTier(Cooler, caps.Cooler),
			Freezer: NewTier(Freezer, caps.Freezer),
		},
		shelf: NewOverflowShelf(caps.Shelf),
		index: make(map[string]*StoredItem),
	}, nil
}

// Place stores item in its ideal tier, or on the shelf when the tier is
// full. When both are full it first tries to move a shelf occupant into a
// tier with room, and otherwise discards the shelf occupant expiring
// soonest, retrying until the item fits. It returns every action appended
// to the ledger, ending with the item's place.
func (e *Engine) Place(item Item) ([]Action, error) {
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("place: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.index[item.ID]; ok {
		return nil, fmt.Errorf("place %s: %w", item.ID, ErrDuplicateItem)
	}

	start := len(e.ledger)
	for {
		now := e.clock.NowMicros()

		if loc, ok := e.placement(item); ok {
			s, err := NewStoredItem(item, loc, now)
			if err != nil {
				return e.since(start), fmt.Errorf("place %s: %w", item.ID, err)
			}
			if err := e.insert(s); err != nil {
				return e.since(start), fmt.Errorf("place %s: %w", item.ID, err)
			}
			e.index[item.ID] = s
			e.record(now, item.ID, Place, loc)
			return e.since(start), nil
		}

		if e.relocate(now) {
			continue
		}

		victim := e.shelf.PollNextToExpire(now)
		if victim == nil {
			if e.shelf.IsFull() {
				panic(fmt.Sprintf("engine: shelf holds %d/%d but has nothing to evict",
					e.shelf.Size(), e.shelf.Capacity()))
			}
			// Everything polled had already spoiled, which freed space.
			continue
		}
		delete(e.index, victim.ID())
		e.record(now, victim.ID(), Discard, Shelf)
	}
}

// Pickup removes id from storage. A spoiled item is recorded as a discard
// from its last location rather than a pickup. Unknown ids are a no-op and
// report false.
func (e *Engine) Pickup(id string) (Action, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.index[id]
	if !ok {
		return Action{}, false
	}

	now := e.clock.NowMicros()
	s.UpdateFreshness(now)
	expired := !s.Active()
	loc := s.Location()

	e.remove(s)
	delete(e.index, id)

	kind := Pickup
	if expired {
		kind = Discard
	}
	return e.record(now, id, kind, loc), true
}

// Ledger returns a copy of every action recorded so far, in order.
func (e *Engine) Ledger() []Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Action, len(e.ledger))
	copy(out, e.ledger)
	return out
}

// Len returns the number of items the engine is tracking.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.index)
}

// placement picks where a new item can go without displacing anything.
func (e *Engine) placement(item Item) (Location, bool) {
	if loc, ok := IdealLocation(item.Temperature); ok && e.tiers[loc].HasSpace() {
		return loc, true
	}
	if !e.shelf.IsFull() {
		return Shelf, true
	}
	return "", false
}

func (e *Engine) insert(s *StoredItem) error {
	if s.Location() == Shelf {
		e.shelf.Add(s)
		return nil
	}
	return e.tiers[s.Location()].Add(s)
}

func (e *Engine) remove(s *StoredItem) {
	id := s.ID()
	if s.Location() == Shelf {
		if cur, ok := e.shelf.Get(id); ok && cur == s {
			e.shelf.Remove(id)
		}
		return
	}
	if t, ok := e.tiers[s.Location()]; ok {
		t.Remove(id)
	}
}

// relocate moves the least fresh matching shelf occupant into the first
// tier, in preference order, that has room for one. Reports whether
// anything moved.
func (e *Engine) relocate(now int64) bool {
	occupants := e.shelf.Occupants()

	for _, loc := range idealTiers {
		tier := e.tiers[loc]
		if !tier.HasSpace() {
			continue
		}

		var candidate *StoredItem
		for _, s := range occupants {
			if !s.Active() || !isIdeal(loc, s.Item().Temperature) {
				continue
			}
			s.UpdateFreshness(now)
			if !s.Active() {
				continue
			}
			if candidate == nil || s.RemainingFreshness() < candidate.RemainingFreshness() {
				candidate = s
			}
		}
		if candidate == nil {
			continue
		}

		// The shelf deactivates what it removes, so the tier gets a copy and
		// the old heap entry goes stale.
		moved := candidate.clone()
		e.shelf.Remove(candidate.ID())
		moved.MoveTo(loc, now)
		if err := tier.Add(moved); err != nil {
			panic(fmt.Sprintf("engine: move %s: %v", moved.ID(), err))
		}
		e.index[moved.ID()] = moved
		e.record(now, moved.ID(), Move, loc)
		return true
	}
	return false
}

func (e *Engine) record(now int64, id string, kind Kind, target Location) Action {
	a := Action{Timestamp: now, ItemID: id, Kind: kind, Target: target}
	e.ledger = append(e.ledger, a)
	return a
}

func (e *Engine) since(start int) []Action {
	out := make([]Action, len(e.ledger)-start)
	copy(out, e.ledger[start:])
	return out
}
