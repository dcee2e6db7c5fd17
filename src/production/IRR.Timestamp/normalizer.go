// Package timestamp converts the timestamp encodings devices and the store
// produce into one canonical instant.
package timestamp

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Encoding identifies how a raw timestamp value is represented.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingISO
	EncodingDigits
	EncodingEpochSeconds
	EncodingEpochMillis
	EncodingTime
)

func (e Encoding) String() string {
	switch e {
	case EncodingISO:
		return "iso"
	case EncodingDigits:
		return "digits"
	case EncodingEpochSeconds:
		return "epoch_seconds"
	case EncodingEpochMillis:
		return "epoch_millis"
	case EncodingTime:
		return "time"
	default:
		return "none"
	}
}

const (
	// Numbers below this are epoch seconds, at or above it epoch milliseconds.
	millisThreshold = 1e12
	// MinMillis and MaxMillis bound the instants that stay encodable as
	// RFC 3339 (years 0001 through 9999).
	MinMillis int64 = -62135596800000
	MaxMillis int64 = 253402300799999

	// ISOLayout is the canonical textual form of an Instant.
	ISOLayout = "2006-01-02T15:04:05.000Z"
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Instant is a normalized point in time.
type Instant struct {
	Millis int64
	ISO    string
}

// Time returns the instant as a UTC time.Time.
func (i Instant) Time() time.Time {
	return time.UnixMilli(i.Millis).UTC()
}

// InRange reports whether ms lies within [MinMillis, MaxMillis].
func InRange(ms int64) bool {
	return ms >= MinMillis && ms <= MaxMillis
}

// FromMillis builds an Instant from epoch milliseconds.
func FromMillis(ms int64) Instant {
	return Instant{Millis: ms, ISO: time.UnixMilli(ms).UTC().Format(ISOLayout)}
}

// Classify reports which encoding v uses. It is the only place that inspects
// the dynamic type of a raw timestamp.
func Classify(v any) Encoding {
	switch t := v.(type) {
	case nil:
		return EncodingNone
	case time.Time:
		if t.IsZero() {
			return EncodingNone
		}
		return EncodingTime
	case *time.Time:
		if t == nil || t.IsZero() {
			return EncodingNone
		}
		return EncodingTime
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return EncodingNone
		}
		if isDigits(s) {
			return EncodingDigits
		}
		return EncodingISO
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return EncodingNone
		}
		return classifyFloat(f)
	case float64:
		return classifyFloat(t)
	case float32:
		return classifyFloat(float64(t))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, _ := toFloat(t)
		return classifyFloat(f)
	default:
		return EncodingNone
	}
}

func classifyFloat(f float64) Encoding {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return EncodingNone
	}
	if f >= millisThreshold {
		return EncodingEpochMillis
	}
	return EncodingEpochSeconds
}

// Normalize converts v into an Instant. It never panics; the boolean is false
// when v is absent or cannot be interpreted.
func Normalize(v any) (Instant, bool) {
	switch Classify(v) {
	case EncodingTime:
		if p, ok := v.(*time.Time); ok {
			return fromMillis(p.UnixMilli())
		}
		return fromMillis(v.(time.Time).UnixMilli())
	case EncodingEpochSeconds, EncodingEpochMillis:
		return fromNumber(v)
	case EncodingDigits:
		n, err := strconv.ParseInt(strings.TrimSpace(v.(string)), 10, 64)
		if err != nil {
			return Instant{}, false
		}
		return fromInt(n)
	case EncodingISO:
		return parseISO(strings.TrimSpace(v.(string)))
	default:
		return Instant{}, false
	}
}

// Resolve returns the first candidate that normalizes successfully.
func Resolve(candidates ...any) (Instant, bool) {
	for _, c := range candidates {
		if inst, ok := Normalize(c); ok {
			return inst, true
		}
	}
	return Instant{}, false
}

func fromNumber(v any) (Instant, bool) {
	switch n := v.(type) {
	case int:
		return fromInt(int64(n))
	case int8:
		return fromInt(int64(n))
	case int16:
		return fromInt(int64(n))
	case int32:
		return fromInt(int64(n))
	case int64:
		return fromInt(n)
	case uint, uint8, uint16, uint32, uint64:
		u := toUint(n)
		if u > math.MaxInt64 {
			return Instant{}, false
		}
		return fromInt(int64(u))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return fromInt(i)
		}
		f, err := n.Float64()
		if err != nil {
			return Instant{}, false
		}
		return fromFloat(f)
	}
	f, ok := toFloat(v)
	if !ok {
		return Instant{}, false
	}
	return fromFloat(f)
}

func fromInt(n int64) (Instant, bool) {
	if n >= millisThreshold {
		return fromMillis(n)
	}
	if n < MinMillis/1000 {
		return Instant{}, false
	}
	return fromMillis(n * 1000)
}

func fromMillis(ms int64) (Instant, bool) {
	if !InRange(ms) {
		return Instant{}, false
	}
	return FromMillis(ms), true
}

func fromFloat(f float64) (Instant, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Instant{}, false
	}
	ms := math.Floor(f)
	if f < millisThreshold {
		ms = math.Floor(f * 1000)
	}
	if ms < float64(MinMillis) || ms > float64(MaxMillis) {
		return Instant{}, false
	}
	return fromMillis(int64(ms))
}

func parseISO(s string) (Instant, bool) {
	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return fromMillis(t.UnixMilli())
		}
	}
	return Instant{}, false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toUint(v any) uint64 {
	switch n := v.(type) {
	case uint:
		return uint64(n)
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	}
	return 0
}
