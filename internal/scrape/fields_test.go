package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstString(t *testing.T) {
	obj := map[string]any{"s": "112", "empty": "", "num": float64(42)}

	v, ok := FirstString(obj, "missing", "s")
	assert.True(t, ok)
	assert.Equal(t, "112", v)

	// empty strings are skipped in favor of later keys
	v, ok = FirstString(obj, "empty", "s")
	assert.True(t, ok)
	assert.Equal(t, "112", v)

	// numeric values are stringified
	v, ok = FirstString(obj, "num")
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	_, ok = FirstString(obj, "missing", "empty")
	assert.False(t, ok)
}

func TestFirstFloat(t *testing.T) {
	obj := map[string]any{
		"p":    float64(149.5),
		"zero": float64(0),
		"neg":  float64(-10),
		"str":  "89.99",
	}

	v, ok := FirstFloat(obj, "missing", "p")
	assert.True(t, ok)
	assert.Equal(t, 149.5, v)

	// zero and negative values don't count as prices
	_, ok = FirstFloat(obj, "zero", "neg")
	assert.False(t, ok)

	// numeric strings parse
	v, ok = FirstFloat(obj, "str")
	assert.True(t, ok)
	assert.Equal(t, 89.99, v)
}

func TestFirstInt(t *testing.T) {
	obj := map[string]any{"q": float64(2), "zero": float64(0)}

	v, ok := FirstInt(obj, "q")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = FirstInt(obj, "zero")
	assert.False(t, ok)
}

func TestFirstPrice(t *testing.T) {
	paths := []PricePath{
		{Key: "currentPrice", SubKey: "amount"},
		{Key: "price"},
	}

	obj := map[string]any{
		"currentPrice": map[string]any{"amount": float64(125)},
		"price":        float64(99),
	}
	v, ok := FirstPrice(obj, paths)
	assert.True(t, ok)
	assert.Equal(t, 125.0, v)

	// falls through to the flat key when nesting is absent
	obj = map[string]any{"price": float64(99)}
	v, ok = FirstPrice(obj, paths)
	assert.True(t, ok)
	assert.Equal(t, 99.0, v)

	_, ok = FirstPrice(map[string]any{}, paths)
	assert.False(t, ok)
}
