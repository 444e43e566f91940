package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidItem is returned when an item is missing a required field.
var ErrInvalidItem = errors.New("invalid item")

// Temperature is the storage class an item needs to stay fresh.
type Temperature string

const (
	Hot    Temperature = "hot"
	Cold   Temperature = "cold"
	Frozen Temperature = "frozen"
	Room   Temperature = "room"
)

// ParseTemperature resolves a temperature name case-insensitively.
// "ambient" is accepted as a spelling of Room.
func ParseTemperature(s string) (Temperature, error) {
	switch t := Temperature(strings.ToLower(strings.TrimSpace(s))); t {
	case Hot, Cold, Frozen, Room:
		return t, nil
	case "ambient":
		return Room, nil
	case "":
		return "", fmt.Errorf("%w: missing temperature", ErrInvalidItem)
	default:
		return "", fmt.Errorf("%w: unknown temperature %q", ErrInvalidItem, s)
	}
}

// Location is where a stored item physically sits.
type Location string

const (
	Heater  Location = "heater"
	Cooler  Location = "cooler"
	Freezer Location = "freezer"
	Shelf   Location = "shelf"
)

// ParseLocation resolves a location name case-insensitively.
func ParseLocation(s string) (Location, error) {
	switch l := Location(strings.ToLower(strings.TrimSpace(s))); l {
	case Heater, Cooler, Freezer, Shelf:
		return l, nil
	default:
		return "", fmt.Errorf("unknown location %q", s)
	}
}

// idealTiers is the fixed tier preference order used when relocating
// shelf occupants.
var idealTiers = [...]Location{Heater, Cooler, Freezer}

// IdealLocation returns the dedicated tier for a temperature. Room
// temperature items have no tier and report false.
func IdealLocation(t Temperature) (Location, bool) {
	switch t {
	case Hot:
		return Heater, true
	case Cold:
		return Cooler, true
	case Frozen:
		return Freezer, true
	default:
		return "", false
	}
}

// isIdeal reports whether loc decays t at the nominal rate. The shelf is
// never ideal.
func isIdeal(loc Location, t Temperature) bool {
	ideal, ok := IdealLocation(t)
	return ok && ideal == loc
}

// Item is an immutable description of a perishable order.
type Item struct {
	ID               string
	Name             string
	Temperature      Temperature
	ShelfLifeSeconds int
	DecayRate        float64
}

// NewItem builds a validated Item.
func NewItem(id, name string, temp Temperature, shelfLifeSeconds int, decayRate float64) (Item, error) {
	it := Item{
		ID:               id,
		Name:             name,
		Temperature:      temp,
		ShelfLifeSeconds: shelfLifeSeconds,
		DecayRate:        decayRate,
	}
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Validate checks that every required field is present.
func (it Item) Validate() error {
	if strings.TrimSpace(it.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: missing name for id=%s", ErrInvalidItem, it.ID)
	}
	switch it.Temperature {
	case Hot, Cold, Frozen, Room:
	case "":
		return fmt.Errorf("%w: missing temperature for id=%s", ErrInvalidItem, it.ID)
	default:
		return fmt.Errorf("%w: unknown temperature %q for id=%s", ErrInvalidItem, it.Temperature, it.ID)
	}
	if it.ShelfLifeSeconds < 0 {
		return fmt.Errorf("%w: negative shelf life for id=%s", ErrInvalidItem, it.ID)
	}
	return nil
}
