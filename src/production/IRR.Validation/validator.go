package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
	timestamp "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Timestamp"
)

// FieldViolation describes one rejected field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field a payload got wrong.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type checker struct {
	payload    map[string]any
	violations []FieldViolation
}

func (c *checker) fail(field, format string, args ...any) {
	c.violations = append(c.violations, FieldViolation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// value returns the field and whether it carries a non-null value.
func (c *checker) value(field string) (any, bool) {
	v, ok := c.payload[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// required is value, except that a string of only whitespace counts as absent.
func (c *checker) required(field string) (any, bool) {
	v, ok := c.value(field)
	if !ok {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func (c *checker) optionalNumber(field string) *float64 {
	v, ok := c.value(field)
	if !ok {
		return nil
	}
	f, ok := toNumber(v)
	if !ok {
		c.fail(field, "must be a number")
		return nil
	}
	return &f
}

func (c *checker) optionalString(field string) *string {
	v, ok := c.value(field)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		c.fail(field, "must be a string")
		return nil
	}
	return &s
}

// ValidateReading checks a decoded JSON object and converts it into a
// ReadingInput. now supplies the receive time used when no timestamp can be
// converted. Unknown keys are ignored.
func ValidateReading(payload map[string]any, now func() time.Time) (irrmodels.ReadingInput, error) {
	c := &checker{payload: payload}
	var in irrmodels.ReadingInput

	if v, ok := c.required("humidity"); !ok {
		c.fail("humidity", "is required")
	} else if f, ok := toNumber(v); !ok {
		c.fail("humidity", "must be a number")
	} else {
		in.Humidity = f
	}

	rawTimestamp, hasTimestamp := c.required("timestamp")
	if !hasTimestamp {
		c.fail("timestamp", "is required")
	}

	if v, ok := c.value("regando"); ok {
		b, ok := toBool(v)
		if ok {
			in.Regando = &b
		} else {
			c.fail("regando", "must be a boolean or 0/1")
		}
	}

	in.RegaPulsos = c.optionalNumber("rega_pulsos")
	in.RegaVolumeL = c.optionalNumber("rega_volume_l")
	in.VolumeTotalL = c.optionalNumber("volume_total_l")
	in.RegaDuracaoS = c.optionalNumber("rega_duracao_s")

	rawDeviceTs, _ := c.value("device_ts_ms")
	if f := c.optionalNumber("device_ts_ms"); f != nil {
		if *f < float64(timestamp.MinMillis) || *f > float64(timestamp.MaxMillis) {
			c.fail("device_ts_ms", "must be an epoch in range")
		} else {
			ms := int64(math.Floor(*f))
			in.DeviceTsMs = &ms
		}
	}

	in.EspIP = c.optionalString("esp_ip")
	in.EspRSSI = c.optionalNumber("esp_rssi")
	in.TimestampISO = c.optionalString("timestamp_iso")

	if len(c.violations) > 0 {
		return irrmodels.ReadingInput{}, &ValidationError{Violations: c.violations}
	}

	if inst, ok := timestamp.Resolve(rawTimestamp, rawDeviceTs); ok {
		in.Timestamp = inst.Time()
	} else {
		in.Timestamp = now().UTC().Truncate(time.Millisecond)
		in.TimestampDefaulted = true
	}

	return in, nil
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.TrimSpace(strings.ToLower(b)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
		return false, false
	}
	f, ok := toNumber(v)
	if !ok {
		return false, false
	}
	switch f {
	case 1:
		return true, true
	case 0:
		return false, true
	}
	return false, false
}
