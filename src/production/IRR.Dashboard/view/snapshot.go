package view

import (
	"math"
	"sort"
	"time"
)

// Stats summarizes humidity over a set of readings.
type Stats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Snapshot is the derived state of one full refresh.
type Snapshot struct {
	Readings  []NormalizedReading `json:"readings"`
	Latest    *NormalizedReading  `json:"latest"`
	Stats     Stats               `json:"stats"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// BuildSnapshot normalizes raws and orders them by ascending timestamp.
// Readings without a resolvable timestamp sort as if it were 0, ahead of
// everything else.
func BuildSnapshot(raws []RawReading, fetchedAt time.Time) Snapshot {
	readings := NormalizeAll(raws)
	sort.SliceStable(readings, func(i, j int) bool {
		return tsOrZero(readings[i]) < tsOrZero(readings[j])
	})

	snap := Snapshot{
		Readings:  readings,
		Stats:     Aggregate(readings),
		FetchedAt: fetchedAt,
	}
	if len(readings) > 0 {
		latest := readings[len(readings)-1]
		snap.Latest = &latest
	}
	return snap
}

// Aggregate returns mean (two decimals), min and max humidity. An empty set
// yields all zeros.
func Aggregate(readings []NormalizedReading) Stats {
	if len(readings) == 0 {
		return Stats{}
	}
	sum := 0.0
	min, max := math.Inf(1), math.Inf(-1)
	for _, r := range readings {
		sum += r.Humidity
		min = math.Min(min, r.Humidity)
		max = math.Max(max, r.Humidity)
	}
	return Stats{
		Count: len(readings),
		Mean:  math.Round(sum/float64(len(readings))*100) / 100,
		Min:   min,
		Max:   max,
	}
}

func tsOrZero(r NormalizedReading) int64 {
	if r.TsMs == nil {
		return 0
	}
	return *r.TsMs
}
