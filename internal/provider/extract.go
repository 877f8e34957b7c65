// Package provider holds helpers shared by provider transports.
package provider

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ExtractValue normalizes a stat value from the provider's JSON.
//
// Box-score stats usually arrive as flat numbers, but older payloads wrap
// them as {"value": 3} or {"total": 3}, and some counters come back as
// strings. Returns ok=false if no scalar could be found.
func ExtractValue(val interface{}) (float64, bool) {
	if val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
		return 0, false
	case map[string]interface{}:
		for _, key := range []string{"value", "total", "count"} {
			if inner, exists := v[key]; exists && inner != nil {
				return ExtractValue(inner)
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

// ExtractCount is ExtractValue rounded to a non-negative integer.
func ExtractCount(val interface{}) int {
	f, ok := ExtractValue(val)
	if !ok || f < 0 {
		return 0
	}
	return int(math.Round(f))
}

// FirstCount returns the count under the first key present in stats.
func FirstCount(stats map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		if v, ok := stats[k]; ok && v != nil {
			return ExtractCount(v)
		}
	}
	return 0
}
