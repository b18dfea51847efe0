package profile

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Effect is the mechanical payload of a choice: typed deltas for schema
// attributes plus an open bag for everything else.
type Effect struct {
	Deltas   map[Attribute]int
	Freeform map[string]any
}

// ParseEffect splits a raw payload. Numeric values (or numeric strings) on
// known attribute keys become deltas; every other entry is freeform.
func ParseEffect(raw map[string]any) Effect {
	var effect Effect
	for key, value := range raw {
		if Known(key) {
			if delta, ok := toInt(value); ok {
				if effect.Deltas == nil {
					effect.Deltas = make(map[Attribute]int)
				}
				effect.Deltas[Attribute(key)] += delta
				continue
			}
		}
		if effect.Freeform == nil {
			effect.Freeform = make(map[string]any)
		}
		effect.Freeform[key] = value
	}
	return effect
}

// IsEmpty reports whether applying the effect changes nothing.
func (e Effect) IsEmpty() bool {
	for _, delta := range e.Deltas {
		if delta != 0 {
			return false
		}
	}
	return len(e.Freeform) == 0
}

// Raw flattens the effect back to a payload map.
func (e Effect) Raw() map[string]any {
	out := make(map[string]any, len(e.Deltas)+len(e.Freeform))
	for key, value := range e.Freeform {
		out[key] = value
	}
	for attr, delta := range e.Deltas {
		out[string(attr)] = delta
	}
	return out
}

// MarshalJSON encodes the effect as a flat object.
func (e Effect) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Raw())
}

// UnmarshalJSON decodes a flat object; null decodes to the empty effect.
func (e *Effect) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ParseEffect(raw)
	return nil
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return saturate(int64(v)), true
	case int64:
		return saturate(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return saturateFloat(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return saturate(i), true
		}
		f, err := v.Float64()
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return saturateFloat(f), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return saturate(i), true
	default:
		return 0, false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Deltas are capped at ±maxDelta so adding one to any stored value cannot
// overflow.
const maxDelta = math.MaxInt32

func saturate(v int64) int {
	switch {
	case v > maxDelta:
		return maxDelta
	case v < -maxDelta:
		return -maxDelta
	}
	return int(v)
}

func saturateFloat(v float64) int {
	switch {
	case v > maxDelta:
		return maxDelta
	case v < -maxDelta:
		return -maxDelta
	}
	return int(v)
}
