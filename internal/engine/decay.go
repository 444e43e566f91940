package engine

import "math"

// Freshness decay model:
//   - Every item starts with ShelfLifeSeconds * 1e6 units of freshness.
//   - Each elapsed microsecond consumes DecayRate * multiplier units.
//   - multiplier is 1 in the item's ideal tier and 2 anywhere else,
//     which always includes the overflow shelf.
//   - Decay is settled lazily: nothing changes until UpdateFreshness is
//     called with a later timestamp.
//   - A zero or negative DecayRate never expires.

const microsPerSecond = 1_000_000

// neverExpires is the projected expiration of items that cannot spoil.
const neverExpires int64 = math.MaxInt64

const (
	idealMultiplier   = 1.0
	penaltyMultiplier = 2.0
)

func decayMultiplier(loc Location, t Temperature) float64 {
	if isIdeal(loc, t) {
		return idealMultiplier
	}
	return penaltyMultiplier
}

// estimateExpiration projects the absolute microsecond at which s will
// run out of freshness if left where it is. The projection is taken once,
// at shelf insertion, and only orders the eviction heap.
func estimateExpiration(s *StoredItem) int64 {
	if !s.active {
		return neverExpires
	}
	if s.remaining <= 0 {
		return s.lastUpdatedAt
	}
	rate := s.item.DecayRate
	if rate <= 0 {
		return neverExpires
	}

	until := math.Ceil(s.remaining / (rate * decayMultiplier(s.location, s.item.Temperature)))
	if until >= float64(math.MaxInt64) || math.IsNaN(until) {
		return neverExpires
	}
	at := s.lastUpdatedAt + int64(until)
	if at < s.lastUpdatedAt {
		return neverExpires
	}
	return at
}
