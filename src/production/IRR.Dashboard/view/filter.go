package view

import (
	"fmt"
	"strconv"
	"strings"

	timestamp "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Timestamp"
)

// Filter bounds are inclusive. Nil bounds are inactive.
type Filter struct {
	StartMs     *int64   `json:"start_ms,omitempty"`
	EndMs       *int64   `json:"end_ms,omitempty"`
	MinHumidity *float64 `json:"min_humidity,omitempty"`
	MaxHumidity *float64 `json:"max_humidity,omitempty"`
}

// HasDateBound reports whether either date bound is set.
func (f Filter) HasDateBound() bool {
	return f.StartMs != nil || f.EndMs != nil
}

// Key is a canonical form of the active bounds. Two filters with the same
// bounds share a key.
func (f Filter) Key() string {
	parts := make([]string, 4)
	if f.StartMs != nil {
		parts[0] = strconv.FormatInt(*f.StartMs, 10)
	}
	if f.EndMs != nil {
		parts[1] = strconv.FormatInt(*f.EndMs, 10)
	}
	if f.MinHumidity != nil {
		parts[2] = strconv.FormatFloat(*f.MinHumidity, 'g', -1, 64)
	}
	if f.MaxHumidity != nil {
		parts[3] = strconv.FormatFloat(*f.MaxHumidity, 'g', -1, 64)
	}
	return strings.Join(parts, ";")
}

// Matches reports whether r passes every active bound. A reading without a
// timestamp never matches while a date bound is active.
func (f Filter) Matches(r NormalizedReading) bool {
	if f.HasDateBound() {
		if r.TsMs == nil {
			return false
		}
		if f.StartMs != nil && *r.TsMs < *f.StartMs {
			return false
		}
		if f.EndMs != nil && *r.TsMs > *f.EndMs {
			return false
		}
	}
	if f.MinHumidity != nil && r.Humidity < *f.MinHumidity {
		return false
	}
	if f.MaxHumidity != nil && r.Humidity > *f.MaxHumidity {
		return false
	}
	return true
}

// Apply returns the readings that match, in their original order.
func (f Filter) Apply(readings []NormalizedReading) []NormalizedReading {
	out := make([]NormalizedReading, 0, len(readings))
	for _, r := range readings {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// ParseFilter builds a Filter from query values. Empty values leave the bound
// inactive; dates accept any timestamp encoding.
func ParseFilter(start, end, min, max string) (Filter, error) {
	var f Filter
	if s := strings.TrimSpace(start); s != "" {
		inst, ok := timestamp.Normalize(s)
		if !ok {
			return Filter{}, fmt.Errorf("invalid start %q", start)
		}
		f.StartMs = &inst.Millis
	}
	if s := strings.TrimSpace(end); s != "" {
		inst, ok := timestamp.Normalize(s)
		if !ok {
			return Filter{}, fmt.Errorf("invalid end %q", end)
		}
		f.EndMs = &inst.Millis
	}
	if s := strings.TrimSpace(min); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid min %q", min)
		}
		f.MinHumidity = &v
	}
	if s := strings.TrimSpace(max); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid max %q", max)
		}
		f.MaxHumidity = &v
	}
	return f, nil
}
