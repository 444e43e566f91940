package engine

import "fmt"

// StoredItem binds an Item to a location and tracks its freshness over time.
// It is not safe for concurrent use; the Engine serializes access.
type StoredItem struct {
	item          Item
	location      Location
	placedAt      int64
	lastUpdatedAt int64
	remaining     float64
	active        bool
}

// NewStoredItem wraps a validated item placed at loc at time now.
func NewStoredItem(item Item, loc Location, now int64) (*StoredItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseLocation(string(loc)); err != nil {
		return nil, fmt.Errorf("store %s: %w", item.ID, err)
	}
	return &StoredItem{
		item:          item,
		location:      loc,
		placedAt:      now,
		lastUpdatedAt: now,
		remaining:     float64(item.ShelfLifeSeconds) * microsPerSecond,
		active:        true,
	}, nil
}

func (s *StoredItem) Item() Item { return s.item }
func (s *StoredItem) ID() string { return s.item.ID }
func (s *StoredItem) Location() Location { return s.location }
func (s *StoredItem) PlacedAt() int64 { return s.placedAt }
func (s *StoredItem) LastUpdatedAt() int64 { return s.lastUpdatedAt }
func (s *StoredItem) RemainingFreshness() float64 { return s.remaining }
func (s *StoredItem) Active() bool { return s.active }

// UpdateFreshness settles decay accrued since the last update. Timestamps at
// or before the last update decay nothing. Once freshness hits zero the item
// stays inactive for good.
func (s *StoredItem) UpdateFreshness(now int64) {
	if !s.active {
		return
	}
	elapsed := now - s.lastUpdatedAt
	if elapsed <= 0 {
		return
	}

	s.remaining -= float64(elapsed) * s.item.DecayRate * decayMultiplier(s.location, s.item.Temperature)
	s.lastUpdatedAt = now

	if s.remaining <= 0 {
		s.remaining = 0
		s.active = false
	}
}

// IsExpired settles freshness at now and reports whether the item is spoiled.
func (s *StoredItem) IsExpired(now int64) bool {
	s.UpdateFreshness(now)
	return !s.active
}

// MoveTo settles decay at the current location and then switches to loc.
// Freshness and timestamps carry over; decay resumes at loc's multiplier.
func (s *StoredItem) MoveTo(loc Location, now int64) {
	s.UpdateFreshness(now)
	s.location = loc
}

// Deactivate marks the item as no longer stored.
func (s *StoredItem) Deactivate() {
	s.active = false
}

// clone copies s so the original can be deactivated without affecting the
// copy. Used when relocating so stale heap entries stay invalid.
func (s *StoredItem) clone() *StoredItem {
	c := *s
	return &c
}

func (s *StoredItem) String() string {
	return fmt.Sprintf("%s@%s(remaining=%.0f active=%t)", s.item.ID, s.location, s.remaining, s.active)
}
