package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/larder/internal/engine"
)

func TestDecode_ResolvesAliases(t *testing.T) {
	payload := `[
		{"id": "a1", "name": "Cheese Pizza", "temp": "hot", "shelfLife": 120, "decayRate": 0.45},
		{"orderId": "a2", "name": "Yogurt", "temperature": "COLD", "shelfLifeSeconds": "90", "decay_rate": "0.5"},
		{"id": "a3", "name": "Popsicle", "temp": "frozen", "shelfLifeSec": 300},
		{"id": 4, "name": "Bread", "temp": "room", "freshness": 60, "decayRate": 1},
		{"id": "a5", "name": "Salad", "temp": "AMBIENT", "shelfLife": 45, "decayRate": 0.5}
	]`

	items, err := Decode(strings.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, []engine.Item{
		{ID: "a1", Name: "Cheese Pizza", Temperature: engine.Hot, ShelfLifeSeconds: 120, DecayRate: 0.45},
		{ID: "a2", Name: "Yogurt", Temperature: engine.Cold, ShelfLifeSeconds: 90, DecayRate: 0.5},
		{ID: "a3", Name: "Popsicle", Temperature: engine.Frozen, ShelfLifeSeconds: 300, DecayRate: 1},
		{ID: "4", Name: "Bread", Temperature: engine.Room, ShelfLifeSeconds: 60, DecayRate: 1},
		{ID: "a5", Name: "Salad", Temperature: engine.Room, ShelfLifeSeconds: 45, DecayRate: 0.5},
	}, items)
}

func TestDecode_WrappedOrders(t *testing.T) {
	items, err := DecodeBytes([]byte(`{"orders": [{"id": "x", "name": "Soup", "temp": "hot", "shelfLife": 10}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].ID)
}

func TestDecode_SkipsNonObjects(t *testing.T) {
	items, err := DecodeBytes([]byte(`[1, "two", null, {"id": "x", "name": "Soup", "temp": "hot", "shelfLife": 10}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestDecode_NullAliasFallsThrough(t *testing.T) {
	items, err := DecodeBytes([]byte(`[{"id": null, "orderId": "y", "name": "Soup", "temp": "hot", "shelfLife": 10}]`))
	require.NoError(t, err)
	assert.Equal(t, "y", items[0].ID)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		invalid bool
	}{
		{"not json", `nope`, false},
		{"object without orders", `{"items": []}`, false},
		{"missing id", `[{"name": "Soup", "temp": "hot", "shelfLife": 10}]`, true},
		{"missing name", `[{"id": "x", "temp": "hot", "shelfLife": 10}]`, true},
		{"missing temperature", `[{"id": "x", "name": "Soup", "shelfLife": 10}]`, true},
		{"unknown temperature", `[{"id": "x", "name": "Soup", "temp": "warm", "shelfLife": 10}]`, true},
		{"missing shelf life", `[{"id": "x", "name": "Soup", "temp": "hot"}]`, true},
		{"bad shelf life", `[{"id": "x", "name": "Soup", "temp": "hot", "shelfLife": "long"}]`, false},
		{"fractional shelf life", `[{"id": "x", "name": "Soup", "temp": "hot", "shelfLife": 1.5}]`, true},
		{"huge shelf life", `[{"id": "x", "name": "Soup", "temp": "hot", "shelfLife": "1e30"}]`, true},
		{"negative shelf life", `[{"id": "x", "name": "Soup", "temp": "hot", "shelfLife": -5}]`, true},
		{"infinite shelf life", `[{"id": "x", "name": "Soup", "temp": "hot", "shelfLife": "+Inf"}]`, true},
		{"nan decay rate", `[{"id": "x", "name": "Soup", "temp": "hot", "shelfLife": 10, "decayRate": "NaN"}]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tt.payload))
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, engine.ErrInvalidItem)
			}
		})
	}
}

func TestDecode_ErrorNamesRecord(t *testing.T) {
	_, err := DecodeBytes([]byte(`[
		{"id": "ok", "name": "Soup", "temp": "hot", "shelfLife": 10},
		{"id": "bad", "name": "Soup", "temp": "hot"}
	]`))

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Index)
	assert.Contains(t, err.Error(), "order 1")
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "f", "name": "Fries", "temp": "hot", "shelfLife": 30}]`), 0o644))

	items, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "f", items[0].ID)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
