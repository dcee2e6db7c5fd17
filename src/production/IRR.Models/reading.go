package irrmodels

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reading is one persisted sample from a soil sensor.
type Reading struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Humidity     float64            `bson:"humidity" json:"humidity"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
	Regando      bool               `bson:"regando" json:"regando"`
	RegaPulsos   float64            `bson:"rega_pulsos" json:"rega_pulsos"`
	RegaVolumeL  float64            `bson:"rega_volume_l" json:"rega_volume_l"`
	VolumeTotalL float64            `bson:"volume_total_l" json:"volume_total_l"`
	RegaDuracaoS float64            `bson:"rega_duracao_s" json:"rega_duracao_s"`
	DeviceTsMs   *int64             `bson:"device_ts_ms,omitempty" json:"device_ts_ms,omitempty"`
	EspIP        *string            `bson:"esp_ip,omitempty" json:"esp_ip,omitempty"`
	EspRSSI      *float64           `bson:"esp_rssi,omitempty" json:"esp_rssi,omitempty"`
	TimestampISO *string            `bson:"timestamp_iso,omitempty" json:"timestamp_iso,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ReadingInput is a validated creation request. Nil pointers mean the field
// was absent and the store default applies.
type ReadingInput struct {
	Humidity     float64
	Timestamp    time.Time
	Regando      *bool
	RegaPulsos   *float64
	RegaVolumeL  *float64
	VolumeTotalL *float64
	RegaDuracaoS *float64
	DeviceTsMs   *int64
	EspIP        *string
	EspRSSI      *float64
	TimestampISO *string

	// TimestampDefaulted is set when neither timestamp nor device_ts_ms
	// could be converted and the receive time was used instead.
	TimestampDefaulted bool
}

// NewReading applies store defaults to in and stamps it with id and now.
func NewReading(id primitive.ObjectID, in ReadingInput, now time.Time) Reading {
	now = now.UTC().Truncate(time.Millisecond)
	r := Reading{
		ID:           id,
		Humidity:     in.Humidity,
		Timestamp:    in.Timestamp.UTC().Truncate(time.Millisecond),
		DeviceTsMs:   in.DeviceTsMs,
		EspIP:        in.EspIP,
		EspRSSI:      in.EspRSSI,
		TimestampISO: in.TimestampISO,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Regando != nil {
		r.Regando = *in.Regando
	}
	r.RegaPulsos = valueOrZero(in.RegaPulsos)
	r.RegaVolumeL = valueOrZero(in.RegaVolumeL)
	r.VolumeTotalL = valueOrZero(in.VolumeTotalL)
	r.RegaDuracaoS = valueOrZero(in.RegaDuracaoS)
	return r
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// ReadingFields lists the accepted payload keys in declaration order.
var ReadingFields = []string{
	"humidity",
	"timestamp",
	"regando",
	"rega_pulsos",
	"rega_volume_l",
	"volume_total_l",
	"rega_duracao_s",
	"device_ts_ms",
	"esp_ip",
	"esp_rssi",
	"timestamp_iso",
}
