package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolTimes(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	a := []time.Time{month(2005, time.March), month(2005, time.January)}
	b := []time.Time{month(2005, time.January).In(jst), month(2005, time.February)}

	got := PoolTimes(a, b)
	assert.Equal(t, monthly(2005, time.January, 3), got)
}

func TestIntersectTimes_Commutative(t *testing.T) {
	a := monthly(2004, time.January, 12)
	b := append(monthly(2004, time.June, 12), month(2003, time.December))

	ab := IntersectTimes(a, b)
	ba := IntersectTimes(b, a)
	assert.Equal(t, ab, ba)
	assert.Equal(t, monthly(2004, time.June, 7), ab)

	reversed := make([]time.Time, len(a))
	for i := range a {
		reversed[len(a)-1-i] = a[i]
	}
	assert.Equal(t, ab, IntersectTimes(reversed, b))
}

func TestIntersectTimes_ExactEqualityOnly(t *testing.T) {
	a := []time.Time{month(2004, time.January)}
	b := []time.Time{month(2004, time.January).Add(time.Second)}
	assert.Empty(t, IntersectTimes(a, b))
}

func TestRestrictToTimes(t *testing.T) {
	f := seriesField("SWE_inst", "kg m-2", monthly(2004, time.January, 4), 1, 2, 3, 4)
	ref := []time.Time{month(2004, time.April), month(2004, time.February), month(2010, time.May)}

	got, err := RestrictToTimes(f, ref)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{month(2004, time.February), month(2004, time.April)}, got.Times)
	assert.Equal(t, []float64{2, 4}, got.Values)
	assert.Len(t, f.Values, 4)

	_, err = RestrictToTimes(f, []time.Time{month(1999, time.January)})
	var emptyErr *TimeIntersectionEmptyError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, "SWE_inst", emptyErr.Source)
	assert.False(t, IsFatal(err))
}
