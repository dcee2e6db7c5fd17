package timestamp

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Encoding
	}{
		{"nil", nil, EncodingNone},
		{"empty string", "   ", EncodingNone},
		{"iso", "2024-01-01T00:00:00Z", EncodingISO},
		{"digits", "1704067200", EncodingDigits},
		{"seconds", 1704067200.0, EncodingEpochSeconds},
		{"millis", int64(1704067200000), EncodingEpochMillis},
		{"json number", json.Number("1704067200000"), EncodingEpochMillis},
		{"time", time.Unix(10, 0), EncodingTime},
		{"zero time", time.Time{}, EncodingNone},
		{"nan", math.NaN(), EncodingNone},
		{"bool", true, EncodingNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.in))
		})
	}
}

func TestNormalizeEquivalentEncodings(t *testing.T) {
	const want int64 = 1704067200000
	inputs := []any{
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00:00.000Z",
		"2024-01-01T01:00:00+01:00",
		"2024-01-01T00:00:00",
		"2024-01-01",
		"1704067200",
		"1704067200000",
		1704067200,
		int64(1704067200000),
		1704067200.0,
		json.Number("1704067200"),
		time.UnixMilli(want),
	}
	for _, in := range inputs {
		inst, ok := Normalize(in)
		require.True(t, ok, "input %v", in)
		assert.Equal(t, want, inst.Millis, "input %v", in)
		assert.Equal(t, "2024-01-01T00:00:00.000Z", inst.ISO, "input %v", in)
	}
}

func TestNormalizeFloorsFractions(t *testing.T) {
	inst, ok := Normalize(1704067200.5678)
	require.True(t, ok)
	assert.Equal(t, int64(1704067200567), inst.Millis)

	inst, ok = Normalize(1704067200000.9)
	require.True(t, ok)
	assert.Equal(t, int64(1704067200000), inst.Millis)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, in := range []any{
		nil,
		"",
		"not a date",
		"2024-13-45",
		math.Inf(1),
		math.NaN(),
		1e20,
		"99999999999999999999999",
		map[string]any{},
		false,
	} {
		_, ok := Normalize(in)
		assert.False(t, ok, "input %v", in)
	}
}

func TestNormalizeIdempotentOnISO(t *testing.T) {
	first, ok := Normalize(int64(1717243200123))
	require.True(t, ok)

	second, ok := Normalize(first.ISO)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestResolveFallsThrough(t *testing.T) {
	createdAt := "2024-06-01T12:00:00.000Z"

	inst, ok := Resolve(nil, "garbage", createdAt)
	require.True(t, ok)
	assert.Equal(t, createdAt, inst.ISO)

	inst, ok = Resolve(int64(1717243200000), createdAt)
	require.True(t, ok)
	assert.Equal(t, int64(1717243200000), inst.Millis)

	_, ok = Resolve(nil, "", nil)
	assert.False(t, ok)
}

func TestInstantTime(t *testing.T) {
	inst := FromMillis(1704067200123)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 123000000, time.UTC), inst.Time())
}

func TestNormalizeRejectsUnencodableYears(t *testing.T) {
	for _, in := range []any{
		8000000000000000.0,
		int64(8000000000000000),
		"8000000000000000",
		-100000000000.0,
		int64(-62135596801),
		"10000-01-01T00:00:00Z",
		"0000-06-01T00:00:00Z",
		time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		_, ok := Normalize(in)
		assert.False(t, ok, "input %v", in)
	}
}

func TestNormalizeAcceptsRangeEdges(t *testing.T) {
	inst, ok := Normalize(MaxMillis)
	require.True(t, ok)
	assert.Equal(t, "9999-12-31T23:59:59.999Z", inst.ISO)

	inst, ok = Normalize(int64(-62135596800))
	require.True(t, ok)
	assert.Equal(t, MinMillis, inst.Millis)
	assert.Equal(t, "0001-01-01T00:00:00.000Z", inst.ISO)
}
