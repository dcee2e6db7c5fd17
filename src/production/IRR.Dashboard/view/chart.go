package view

// ChartPoint is one sample on the humidity graph.
type ChartPoint struct {
	TsMs         *int64  `json:"ts_ms"`
	TimestampISO *string `json:"timestamp_iso"`
	Humidity     float64 `json:"humidity"`
}

// ChartSeries returns the filtered humidity series in the readings' order.
func ChartSeries(readings []NormalizedReading, f Filter) []ChartPoint {
	filtered := f.Apply(readings)
	points := make([]ChartPoint, 0, len(filtered))
	for _, r := range filtered {
		points = append(points, ChartPoint{TsMs: r.TsMs, TimestampISO: r.TimestampISO, Humidity: r.Humidity})
	}
	return points
}
