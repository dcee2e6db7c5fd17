package view

import (
	"fmt"
	"sort"
)

type Column string

const (
	ColumnNone         Column = ""
	ColumnTimestamp    Column = "timestamp"
	ColumnHumidity     Column = "humidity"
	ColumnRegando      Column = "regando"
	ColumnRegaPulsos   Column = "rega_pulsos"
	ColumnRegaVolumeL  Column = "rega_volume_l"
	ColumnVolumeTotalL Column = "volume_total_l"
	ColumnRegaDuracaoS Column = "rega_duracao_s"
	ColumnEspRSSI      Column = "esp_rssi"
	ColumnEspIP        Column = "esp_ip"
)

// Columns lists the sortable table columns in display order.
var Columns = []Column{
	ColumnTimestamp, ColumnHumidity, ColumnRegando, ColumnRegaPulsos, ColumnRegaVolumeL,
	ColumnVolumeTotalL, ColumnRegaDuracaoS, ColumnEspRSSI, ColumnEspIP,
}

type Direction string

const (
	DirectionNone Direction = ""
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// next cycles asc -> desc -> none -> asc.
func (d Direction) next() Direction {
	switch d {
	case DirectionAsc:
		return DirectionDesc
	case DirectionDesc:
		return DirectionNone
	default:
		return DirectionAsc
	}
}

// SortState is the single active sort. The zero value is unsorted.
type SortState struct {
	Column    Column    `json:"column"`
	Direction Direction `json:"direction"`
}

// ParseColumn validates a column name; empty means unsorted.
func ParseColumn(s string) (Column, error) {
	if s == "" {
		return ColumnNone, nil
	}
	for _, c := range Columns {
		if string(c) == s {
			return c, nil
		}
	}
	return ColumnNone, fmt.Errorf("unknown sort column %q", s)
}

// ParseSortState validates a column/direction pair from a request.
func ParseSortState(column, direction string) (SortState, error) {
	c, err := ParseColumn(column)
	if err != nil {
		return SortState{}, err
	}
	d := Direction(direction)
	switch d {
	case DirectionAsc, DirectionDesc:
	case DirectionNone:
		return SortState{}, nil
	default:
		return SortState{}, fmt.Errorf("unknown sort direction %q", direction)
	}
	if c == ColumnNone {
		return SortState{}, nil
	}
	return SortState{Column: c, Direction: d}, nil
}

// Toggle returns the state after clicking column's header. Clicking a
// different column starts it at ascending and clears the previous one.
func (s SortState) Toggle(column Column) SortState {
	if column == ColumnNone {
		return SortState{}
	}
	if s.Column != column {
		return SortState{Column: column, Direction: DirectionAsc}
	}
	d := s.Direction.next()
	if d == DirectionNone {
		return SortState{}
	}
	return SortState{Column: column, Direction: d}
}

// DirectionFor is the indicator shown on column's header.
func (s SortState) DirectionFor(column Column) Direction {
	if s.Column == column {
		return s.Direction
	}
	return DirectionNone
}

// Sort returns a sorted copy. Missing values compare as zero (or the empty
// string for esp_ip); ties keep their input order.
func Sort(readings []NormalizedReading, s SortState) []NormalizedReading {
	out := make([]NormalizedReading, len(readings))
	copy(out, readings)
	if s.Column == ColumnNone || s.Direction == DirectionNone {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j], s.Column)
		if s.Direction == DirectionDesc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compare(a, b NormalizedReading, column Column) int {
	if column == ColumnEspIP {
		sa, sb := derefString(a.EspIP), derefString(b.EspIP)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	}
	va, vb := sortValue(a, column), sortValue(b, column)
	switch {
	case va < vb:
		return -1
	case va > vb:
		return 1
	}
	return 0
}

func sortValue(r NormalizedReading, column Column) float64 {
	switch column {
	case ColumnTimestamp:
		return float64(tsOrZero(r))
	case ColumnHumidity:
		return r.Humidity
	case ColumnRegando:
		if r.Regando {
			return 1
		}
		return 0
	case ColumnRegaPulsos:
		return derefFloat(r.RegaPulsos)
	case ColumnRegaVolumeL:
		return derefFloat(r.RegaVolumeL)
	case ColumnVolumeTotalL:
		return derefFloat(r.VolumeTotalL)
	case ColumnRegaDuracaoS:
		return derefFloat(r.RegaDuracaoS)
	case ColumnEspRSSI:
		return derefFloat(r.EspRSSI)
	}
	return 0
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
