// Package view derives dashboard views from a full set of readings. Every
// function takes its input by value and returns new slices; nothing here
// mutates the readings it was given.
package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	timestamp "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Timestamp"
)

// RawReading is one reading exactly as the API returned it.
type RawReading map[string]interface{}

// NormalizedReading carries typed fields plus the resolved timestamp. TsMs and
// TimestampISO are nil when no timestamp could be resolved.
type NormalizedReading struct {
	ID           string     `json:"_id,omitempty"`
	Humidity     float64    `json:"humidity"`
	TsMs         *int64     `json:"ts_ms"`
	TimestampISO *string    `json:"timestamp_iso"`
	Regando      bool       `json:"regando"`
	RegaPulsos   *float64   `json:"rega_pulsos,omitempty"`
	RegaVolumeL  *float64   `json:"rega_volume_l,omitempty"`
	VolumeTotalL *float64   `json:"volume_total_l,omitempty"`
	RegaDuracaoS *float64   `json:"rega_duracao_s,omitempty"`
	DeviceTsMs   *float64   `json:"device_ts_ms,omitempty"`
	EspIP        *string    `json:"esp_ip,omitempty"`
	EspRSSI      *float64   `json:"esp_rssi,omitempty"`
	Original     RawReading `json:"original"`
}

// DecodeReadings parses a JSON array of readings, keeping numbers exact.
func DecodeReadings(data []byte) ([]RawReading, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raws []RawReading
	if err := dec.Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	if raws == nil {
		raws = []RawReading{}
	}
	return raws, nil
}

// Normalize resolves the reading's instant from timestamp, then device_ts_ms,
// then createdAt.
func Normalize(raw RawReading) NormalizedReading {
	n := NormalizedReading{
		Humidity:     numberOrZero(raw["humidity"]),
		Regando:      truthy(raw["regando"]),
		RegaPulsos:   optionalNumber(raw["rega_pulsos"]),
		RegaVolumeL:  optionalNumber(raw["rega_volume_l"]),
		VolumeTotalL: optionalNumber(raw["volume_total_l"]),
		RegaDuracaoS: optionalNumber(raw["rega_duracao_s"]),
		DeviceTsMs:   optionalNumber(raw["device_ts_ms"]),
		EspRSSI:      optionalNumber(raw["esp_rssi"]),
		Original:     raw,
	}
	if id, ok := raw["_id"].(string); ok {
		n.ID = id
	}
	if ip, ok := raw["esp_ip"].(string); ok && ip != "" {
		n.EspIP = &ip
	}

	if inst, ok := timestamp.Resolve(raw["timestamp"], raw["device_ts_ms"], raw["createdAt"]); ok {
		ms, iso := inst.Millis, inst.ISO
		n.TsMs = &ms
		n.TimestampISO = &iso
	}
	return n
}

// NormalizeAll normalizes raws in order.
func NormalizeAll(raws []RawReading) []NormalizedReading {
	out := make([]NormalizedReading, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw))
	}
	return out
}

func optionalNumber(v interface{}) *float64 {
	f, ok := toNumber(v)
	if !ok {
		return nil
	}
	return &f
}

func numberOrZero(v interface{}) float64 {
	f, _ := toNumber(v)
	return f
}

func toNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
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

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "1" || b == "true"
	}
	f, ok := toNumber(v)
	return ok && f == 1
}
