// Package mirror copies stored readings into InfluxDB for time-series queries.
package mirror

import (
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
)

// ReadingMirror receives every reading after it was persisted.
type ReadingMirror interface {
	Mirror(rd irrmodels.Reading)
}

// PointWriter is the subset of the Influx non-blocking write API the mirror uses.
type PointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxMirror writes readings through the asynchronous Influx write API and
// tracks the last time a write failed.
type InfluxMirror struct {
	writer      PointWriter
	measurement string
	logger      *logger.Logger

	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

// NewInfluxMirror connects to InfluxDB. The returned cleanup flushes pending
// points and closes the client.
func NewInfluxMirror(cfg *config.InfluxConfig, log *logger.Logger) (*InfluxMirror, func()) {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(100).SetFlushInterval(1000))
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	m := newInfluxMirror(writeAPI, writeAPI.Errors(), cfg.Measurement, log)
	cleanup := func() {
		writeAPI.Flush()
		client.Close()
	}
	return m, cleanup
}

func newInfluxMirror(w PointWriter, errs <-chan error, measurement string, log *logger.Logger) *InfluxMirror {
	m := &InfluxMirror{
		writer:      w,
		measurement: measurement,
		logger:      log.WithComponent("influx_mirror"),
	}
	if errs != nil {
		go func() {
			for err := range errs {
				if err == nil {
					continue
				}
				m.mu.Lock()
				m.lastErr = time.Now()
				m.mu.Unlock()
				m.logger.WarnWithError(err, "Influx write failed")
			}
		}()
	}
	return m
}

// Mirror queues rd for writing. It never blocks on the network.
func (m *InfluxMirror) Mirror(rd irrmodels.Reading) {
	m.writer.WritePoint(ReadingToPoint(m.measurement, rd))
	m.mu.Lock()
	m.written++
	m.mu.Unlock()
}

// LastErrorAge reports how long ago the last write failure happened.
// Zero means no failure was seen.
func (m *InfluxMirror) LastErrorAge() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastErr.IsZero() {
		return 0
	}
	return time.Since(m.lastErr)
}

// Written returns how many points were queued.
func (m *InfluxMirror) Written() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.written
}

// ReadingToPoint maps a reading onto one Influx point stamped with its
// canonical timestamp.
func ReadingToPoint(measurement string, rd irrmodels.Reading) *write.Point {
	tags := map[string]string{
		"regando": strconv.FormatBool(rd.Regando),
	}
	if rd.EspIP != nil && *rd.EspIP != "" {
		tags["esp_ip"] = *rd.EspIP
	}

	fields := map[string]interface{}{
		"humidity":       rd.Humidity,
		"rega_pulsos":    rd.RegaPulsos,
		"rega_volume_l":  rd.RegaVolumeL,
		"volume_total_l": rd.VolumeTotalL,
		"rega_duracao_s": rd.RegaDuracaoS,
		"reading_id":     rd.ID.Hex(),
	}
	if rd.EspRSSI != nil {
		fields["esp_rssi"] = *rd.EspRSSI
	}
	if rd.DeviceTsMs != nil {
		fields["device_ts_ms"] = *rd.DeviceTsMs
	}

	return influxdb2.NewPoint(measurement, tags, fields, rd.Timestamp)
}
