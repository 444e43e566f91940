package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/lazypower/larder/internal/engine"
)

// defaultDecayRate applies when a record carries no decay rate.
const defaultDecayRate = 1.0

// Field aliases accepted from challenge payloads and order files, in
// priority order.
var (
	idKeys        = []string{"id", "orderId"}
	nameKeys      = []string{"name"}
	tempKeys      = []string{"temp", "temperature"}
	shelfLifeKeys = []string{"shelfLifeSeconds", "shelfLife", "shelfLifeSec", "freshness"}
	decayKeys     = []string{"decayRate", "decay_rate"}
)

// DecodeError reports which record in a payload could not be decoded.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("order %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode reads a JSON array of order records, or an object wrapping one
// under "orders". Array elements that are not objects are skipped.
func Decode(r io.Reader) ([]engine.Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeFile decodes the orders stored at path.
func DecodeFile(path string) ([]engine.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte) ([]engine.Item, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("parse orders: %w", err)
		}
		inner, ok := wrapper["orders"]
		if !ok {
			return nil, fmt.Errorf("parse orders: payload must be an array or {\"orders\": [...]}")
		}
		data = inner
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse orders: payload must be an array or {\"orders\": [...]}: %w", err)
	}

	items := make([]engine.Item, 0, len(raw))
	for i, elem := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
			continue
		}
		it, err := DecodeRecord(fields)
		if err != nil {
			return nil, &DecodeError{Index: i, Err: err}
		}
		items = append(items, it)
	}
	return items, nil
}

// DecodeRecord builds an Item from one record's raw fields, resolving
// aliases. Numbers may be JSON numbers or numeric strings.
func DecodeRecord(fields map[string]json.RawMessage) (engine.Item, error) {
	id, err := stringField(fields, idKeys)
	if err != nil {
		return engine.Item{}, err
	}
	name, err := stringField(fields, nameKeys)
	if err != nil {
		return engine.Item{}, err
	}
	tempName, err := stringField(fields, tempKeys)
	if err != nil {
		return engine.Item{}, err
	}
	temp, err := engine.ParseTemperature(tempName)
	if err != nil {
		return engine.Item{}, fmt.Errorf("id=%s: %w", id, err)
	}

	shelfLife, ok, err := numberField(fields, shelfLifeKeys)
	if err != nil {
		return engine.Item{}, fmt.Errorf("id=%s: shelf life: %w", id, err)
	}
	if !ok {
		return engine.Item{}, fmt.Errorf("%w: missing shelf life for id=%s", engine.ErrInvalidItem, id)
	}
	seconds, err := wholeSeconds(shelfLife)
	if err != nil {
		return engine.Item{}, fmt.Errorf("%w: shelf life for id=%s: %v", engine.ErrInvalidItem, id, err)
	}

	rate, ok, err := numberField(fields, decayKeys)
	if err != nil {
		return engine.Item{}, fmt.Errorf("id=%s: decay rate: %w", id, err)
	}
	if !ok {
		rate = defaultDecayRate
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return engine.Item{}, fmt.Errorf("%w: decay rate %v for id=%s", engine.ErrInvalidItem, rate, id)
	}

	return engine.NewItem(id, name, temp, seconds, rate)
}

// wholeSeconds converts a decoded shelf life to whole seconds. Fractions
// and values outside the int32 range are rejected rather than truncated.
func wholeSeconds(f float64) (int, error) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0, fmt.Errorf("%v is not finite", f)
	case f < 0 || f > math.MaxInt32:
		return 0, fmt.Errorf("%v is out of range", f)
	case f != math.Trunc(f):
		return 0, fmt.Errorf("%v is not a whole number of seconds", f)
	}
	return int(f), nil
}

func first(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

// stringField returns the first present alias rendered as a string. Missing
// values come back empty so Item validation can name the field.
func stringField(fields map[string]json.RawMessage, keys []string) (string, error) {
	v, ok := first(fields, keys)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("field %s: expected a string, got %s", keys[0], v)
}

func numberField(fields map[string]json.RawMessage, keys []string) (float64, bool, error) {
	v, ok := first(fields, keys)
	if !ok {
		return 0, false, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false, fmt.Errorf("expected a number, got %s", v)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, fmt.Errorf("expected a number, got %q", s)
	}
	return f, true, nil
}
