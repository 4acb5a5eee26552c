package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units string
		step  time.Duration
		epoch time.Time
	}{
		{"days since 1948-01-01 00:00:00", 24 * time.Hour, time.Date(1948, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 2002-01-01T00:00:00Z", 24 * time.Hour, time.Date(2002, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"hours since 2000-1-1 0:0:0", time.Hour, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"minutes since 2000-01-01 06:00:00 UTC", time.Minute, time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01", time.Second, time.Unix(0, 0).UTC()},
		{"hours since 1-1-1 00:00:0.0", time.Hour, time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			step, epoch, err := ParseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.step, step)
			assert.True(t, tt.epoch.Equal(epoch), "epoch %s", epoch)
		})
	}

	for _, bad := range []string{"days", "fortnights since 2000-01-01", "days since yesterday"} {
		_, _, err := ParseTimeUnits(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodeTimes(t *testing.T) {
	got, err := DecodeTimes([]float64{0, 31, 45.5}, "days since 2004-01-01 00:00:00", "gregorian")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2004, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2004, 2, 15, 12, 0, 0, 0, time.UTC),
	}, got)

	_, err = DecodeTimes([]float64{0}, "days since 2004-01-01", "noleap")
	assert.Error(t, err)
}

func TestEncodeTimes_DecodesBack(t *testing.T) {
	times := []time.Time{
		time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2016, 7, 16, 12, 0, 0, 0, time.UTC),
		time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	got, err := DecodeTimes(EncodeTimes(times), TimeUnits, "standard")
	require.NoError(t, err)
	assert.Equal(t, times, got)
}

func TestDecodeTimes_EarlyEpoch(t *testing.T) {
	got, err := DecodeTimes([]float64{731946, 731946.5}, "days since 0001-01-01 00:00:00", "proleptic_gregorian")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2005, 1, 1, 12, 0, 0, 0, time.UTC),
	}, got)

	got, err = DecodeTimes([]float64{17562288}, "hours since 1-1-1 00:00:0.0", "gregorian")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2004, 7, 1, 0, 0, 0, 0, time.UTC)}, got)
}

func TestDecodeTimes_NegativeAndOutOfRange(t *testing.T) {
	got, err := DecodeTimes([]float64{-0.5}, "days since 2004-01-01", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2003, 12, 31, 12, 0, 0, 0, time.UTC), got[0])

	_, err = DecodeTimes([]float64{1e12}, "days since 2004-01-01", "")
	assert.ErrorContains(t, err, "out of range")
}
