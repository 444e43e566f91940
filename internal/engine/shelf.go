package engine

import (
	"cmp"
	"container/heap"
	"slices"
)

// OverflowShelf is the shared, temperature-agnostic pool. Everything on it
// decays at the penalty rate. It answers "who expires next" through a
// min-heap whose entries are invalidated lazily: removal only deactivates
// the item, and stale entries are skipped when they surface.
type OverflowShelf struct {
	capacity int
	members  map[string]shelfMember
	expiring expiryHeap
	seq      uint64
}

type shelfMember struct {
	item *StoredItem
	seq  uint64
}

// NewOverflowShelf creates an empty shelf holding at most capacity items.
func NewOverflowShelf(capacity int) *OverflowShelf {
	s := &OverflowShelf{
		capacity: capacity,
		members:  make(map[string]shelfMember, capacity),
	}
	heap.Init(&s.expiring)
	return s
}

func (s *OverflowShelf) Capacity() int { return s.capacity }

// Size is the number of live occupants. The heap may hold more entries.
func (s *OverflowShelf) Size() int { return len(s.members) }

func (s *OverflowShelf) IsFull() bool { return s.Size() >= s.capacity }

// Add inserts item, replacing any occupant with the same id. The replaced
// copy is deactivated so its heap entry dies on its own.
func (s *OverflowShelf) Add(item *StoredItem) {
	id := item.item.ID
	if old, ok := s.members[id]; ok && old.item != item {
		old.item.Deactivate()
	}

	s.seq++
	s.members[id] = shelfMember{item: item, seq: s.seq}
	heap.Push(&s.expiring, &expiryEntry{
		item:      item,
		expiresAt: estimateExpiration(item),
		seq:       s.seq,
	})
}

// Remove drops id from the shelf and deactivates it. The heap entry is
// left for PollNextToExpire to discard.
func (s *OverflowShelf) Remove(id string) *StoredItem {
	m, ok := s.members[id]
	if !ok {
		return nil
	}
	delete(s.members, id)
	m.item.Deactivate()
	return m.item
}

// Get returns the live occupant for id.
func (s *OverflowShelf) Get(id string) (*StoredItem, bool) {
	m, ok := s.members[id]
	return m.item, ok
}

// PollNextToExpire removes and returns the live occupant with the earliest
// projected expiration. Occupants that turn out to be spoiled at now are
// dropped without being returned. Entries whose item was removed or
// replaced are skipped. Returns nil once the heap is exhausted.
//
// The order is by projected expiration, not remaining freshness. With
// equal decay rates the two agree; with mixed rates a fast decaying
// occupant goes first even if it holds more freshness than a slow one.
func (s *OverflowShelf) PollNextToExpire(now int64) *StoredItem {
	for s.expiring.Len() > 0 {
		e := heap.Pop(&s.expiring).(*expiryEntry)
		if !s.owns(e.item) {
			continue
		}

		// Owned but inactive means it spoiled in place during an earlier
		// settlement; it is gone either way.
		id := e.item.item.ID
		if e.item.IsExpired(now) {
			delete(s.members, id)
			continue
		}

		delete(s.members, id)
		e.item.Deactivate()
		return e.item
	}
	return nil
}

// Occupants returns the live occupants in insertion order.
func (s *OverflowShelf) Occupants() []*StoredItem {
	ms := make([]shelfMember, 0, len(s.members))
	for _, m := range s.members {
		ms = append(ms, m)
	}
	slices.SortFunc(ms, func(a, b shelfMember) int {
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]*StoredItem, len(ms))
	for i, m := range ms {
		out[i] = m.item
	}
	return out
}

// pending is the heap length including stale entries.
func (s *OverflowShelf) pending() int { return s.expiring.Len() }

func (s *OverflowShelf) owns(item *StoredItem) bool {
	m, ok := s.members[item.item.ID]
	return ok && m.item == item
}

type expiryEntry struct {
	item      *StoredItem
	expiresAt int64
	seq       uint64
}

type expiryHeap []*expiryEntry

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	if h[i].expiresAt != h[j].expiresAt {
		return h[i].expiresAt < h[j].expiresAt
	}
	return h[i].seq < h[j].seq
}

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *expiryHeap) Push(x any) {
	*h = append(*h, x.(*expiryEntry))
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
