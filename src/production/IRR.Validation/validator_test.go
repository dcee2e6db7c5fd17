package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	require.NoError(t, dec.Decode(&payload))
	return payload
}

func violationFields(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

func TestValidateMinimalPayload(t *testing.T) {
	in, err := ValidateReading(decode(t, `{"humidity":42,"timestamp":"2024-01-01T00:00:00Z"}`), clock)
	require.NoError(t, err)

	assert.Equal(t, 42.0, in.Humidity)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), in.Timestamp)
	assert.Nil(t, in.Regando)
	assert.Nil(t, in.RegaPulsos)
	assert.False(t, in.TimestampDefaulted)
}

func TestValidateFullDevicePayload(t *testing.T) {
	body := `{
		"humidity": "55.5",
		"timestamp": 1717243200,
		"regando": 1,
		"rega_pulsos": 120,
		"rega_volume_l": 1.5,
		"volume_total_l": 30.25,
		"rega_duracao_s": 12,
		"device_ts_ms": 1717243200000,
		"esp_ip": "192.168.1.50",
		"esp_rssi": -61,
		"timestamp_iso": "2024-06-01T12:00:00Z",
		"firmware": "ignored"
	}`
	in, err := ValidateReading(decode(t, body), clock)
	require.NoError(t, err)

	assert.Equal(t, 55.5, in.Humidity)
	require.NotNil(t, in.Regando)
	assert.True(t, *in.Regando)
	assert.Equal(t, 120.0, *in.RegaPulsos)
	assert.Equal(t, int64(1717243200000), *in.DeviceTsMs)
	assert.Equal(t, "192.168.1.50", *in.EspIP)
	assert.Equal(t, -61.0, *in.EspRSSI)
	assert.Equal(t, fixedNow, in.Timestamp)
}

func TestValidateSecondsAndMillisAgree(t *testing.T) {
	a, err := ValidateReading(decode(t, `{"humidity":1,"timestamp":1717243200}`), clock)
	require.NoError(t, err)
	b, err := ValidateReading(decode(t, `{"humidity":1,"timestamp":1717243200000}`), clock)
	require.NoError(t, err)
	c, err := ValidateReading(decode(t, `{"humidity":1,"timestamp":"1717243200"}`), clock)
	require.NoError(t, err)

	assert.Equal(t, a.Timestamp, b.Timestamp)
	assert.Equal(t, a.Timestamp, c.Timestamp)
}

func TestValidateMissingHumidity(t *testing.T) {
	_, err := ValidateReading(decode(t, `{"timestamp":"2024-01-01T00:00:00Z"}`), clock)
	assert.Equal(t, []string{"humidity"}, violationFields(t, err))
}

func TestValidateMissingOrNullTimestamp(t *testing.T) {
	_, err := ValidateReading(decode(t, `{"humidity":10}`), clock)
	assert.Equal(t, []string{"timestamp"}, violationFields(t, err))

	_, err = ValidateReading(decode(t, `{"humidity":10,"timestamp":null}`), clock)
	assert.Equal(t, []string{"timestamp"}, violationFields(t, err))
}

func TestValidateBlankStringsAreMissing(t *testing.T) {
	_, err := ValidateReading(decode(t, `{"humidity":42,"timestamp":""}`), clock)
	assert.Equal(t, []string{"timestamp"}, violationFields(t, err))

	_, err = ValidateReading(decode(t, `{"humidity":"  ","timestamp":"   "}`), clock)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 2)
	assert.Equal(t, FieldViolation{Field: "humidity", Message: "is required"}, verr.Violations[0])
	assert.Equal(t, FieldViolation{Field: "timestamp", Message: "is required"}, verr.Violations[1])
}

func TestValidateDeviceTsRange(t *testing.T) {
	_, err := ValidateReading(decode(t, `{"humidity":1,"timestamp":"2024-01-01","device_ts_ms":1e30}`), clock)
	assert.Equal(t, []string{"device_ts_ms"}, violationFields(t, err))

	_, err = ValidateReading(decode(t, `{"humidity":1,"timestamp":"2024-01-01","device_ts_ms":-1e17}`), clock)
	assert.Equal(t, []string{"device_ts_ms"}, violationFields(t, err))

	in, err := ValidateReading(decode(t, `{"humidity":1,"timestamp":"2024-01-01","device_ts_ms":253402300799999}`), clock)
	require.NoError(t, err)
	require.NotNil(t, in.DeviceTsMs)
	assert.Equal(t, int64(253402300799999), *in.DeviceTsMs)
}

func TestValidateFarFutureTimestampDefaultsToNow(t *testing.T) {
	in, err := ValidateReading(decode(t, `{"humidity":42,"timestamp":8000000000000000}`), clock)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, in.Timestamp)
	assert.True(t, in.TimestampDefaulted)
}

func TestValidateReportsEveryViolationInOrder(t *testing.T) {
	body := `{"humidity":true,"regando":"maybe","rega_pulsos":"x","esp_ip":7}`
	_, err := ValidateReading(decode(t, body), clock)
	assert.Equal(t, []string{"humidity", "timestamp", "regando", "rega_pulsos", "esp_ip"}, violationFields(t, err))
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateTimestampFallsBackToDeviceClock(t *testing.T) {
	in, err := ValidateReading(decode(t, `{"humidity":10,"timestamp":"garbage","device_ts_ms":1717243200000}`), clock)
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1717243200000).UTC(), in.Timestamp)
	assert.False(t, in.TimestampDefaulted)
}

func TestValidateTimestampDefaultsToNow(t *testing.T) {
	in, err := ValidateReading(decode(t, `{"humidity":10,"timestamp":"garbage"}`), clock)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, in.Timestamp)
	assert.True(t, in.TimestampDefaulted)
}

func TestValidateRegandoForms(t *testing.T) {
	for body, want := range map[string]bool{
		`true`:    true,
		`1`:       true,
		`"1"`:     true,
		`"true"`:  true,
		`false`:   false,
		`0`:       false,
		`"0"`:     false,
		`"false"`: false,
	} {
		in, err := ValidateReading(decode(t, `{"humidity":1,"timestamp":0,"regando":`+body+`}`), clock)
		require.NoError(t, err, body)
		require.NotNil(t, in.Regando, body)
		assert.Equal(t, want, *in.Regando, body)
	}

	_, err := ValidateReading(decode(t, `{"humidity":1,"timestamp":0,"regando":2}`), clock)
	assert.Equal(t, []string{"regando"}, violationFields(t, err))
}
