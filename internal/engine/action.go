package engine

import (
	"fmt"
	"strings"
)

// Kind is the type of a ledger entry.
type Kind string

const (
	Place   Kind = "place"
	Move    Kind = "move"
	Pickup  Kind = "pickup"
	Discard Kind = "discard"
)

// ParseKind resolves a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Place, Move, Pickup, Discard:
		return k, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Action is one immutable ledger entry. Target is the destination for
// place and move, and the source for pickup and discard.
type Action struct {
	Timestamp int64
	ItemID    string
	Kind      Kind
	Target    Location
}

func (a Action) String() string {
	return fmt.Sprintf("%d %s %s %s", a.Timestamp, a.Kind, a.ItemID, a.Target)
}

// Record is the exported wire shape of an Action.
type Record struct {
	Timestamp int64  `json:"timestamp"`
	ID        string `json:"id"`
	Action    string `json:"action"`
	Target    string `json:"target"`
}

// Export converts a ledger to its exported records, preserving order.
func Export(actions []Action) []Record {
	out := make([]Record, len(actions))
	for i, a := range actions {
		out[i] = Record{
			Timestamp: a.Timestamp,
			ID:        a.ItemID,
			Action:    string(a.Kind),
			Target:    string(a.Target),
		}
	}
	return out
}

// ParseRecords converts exported records back into actions.
func ParseRecords(records []Record) ([]Action, error) {
	out := make([]Action, len(records))
	for i, r := range records {
		kind, err := ParseKind(r.Action)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		target, err := ParseLocation(r.Target)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if r.ID == "" {
			return nil, fmt.Errorf("record %d: missing id", i)
		}
		out[i] = Action{Timestamp: r.Timestamp, ItemID: r.ID, Kind: kind, Target: target}
	}
	return out, nil
}
