package scrape

import (
	"fmt"
	"strconv"
)

// Marketplace payloads disagree on field names ("price", "p", "amount",
// sometimes nested under "currentPrice"). These helpers try a prioritized
// key list per field instead of repeating inline conditionals per scraper.

// FirstString returns the first non-empty string value under any of keys.
func FirstString(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), true
		case int:
			return strconv.Itoa(s), true
		}
	}
	return "", false
}

// FirstFloat returns the first positive numeric value under any of keys.
func FirstFloat(obj map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := toFloat(obj[k]); ok && f > 0 {
			return f, true
		}
	}
	return 0, false
}

// FirstInt returns the first positive integer value under any of keys.
func FirstInt(obj map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if f, ok := toFloat(obj[k]); ok && f > 0 {
			return int(f), true
		}
	}
	return 0, false
}

// PricePath is a (key, optional nested subkey) pair tried in order when
// hunting for a price inside a heterogeneous listing object.
type PricePath struct {
	Key    string
	SubKey string
}

// FirstPrice walks paths in priority order, descending one level when a
// subkey is given, and returns the first positive price found.
func FirstPrice(obj map[string]any, paths []PricePath) (float64, bool) {
	for _, p := range paths {
		v, ok := obj[p.Key]
		if !ok || v == nil {
			continue
		}
		if p.SubKey != "" {
			nested, ok := v.(map[string]any)
			if !ok {
				continue
			}
			v = nested[p.SubKey]
		}
		if f, ok := toFloat(v); ok && f > 0 {
			return f, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
