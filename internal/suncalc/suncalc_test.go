package suncalc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	zurichLat = 47.3769
	zurichLon = 8.5417
)

func TestSunEvents_Order(t *testing.T) {
	t.Parallel()
	sc := New(time.Hour)
	times, err := sc.SunEvents(zurichLat, zurichLon, time.Date(2021, 6, 21, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, times.CivilDawn.Before(times.Sunrise))
	assert.True(t, times.Sunrise.Before(times.Sunset))
	assert.True(t, times.Sunset.Before(times.CivilDusk))
	assert.Equal(t, time.UTC, times.Sunrise.Location())
}

func TestSunEvents_Cached(t *testing.T) {
	t.Parallel()
	sc := New(time.Hour)
	day := time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC)

	first, err := sc.SunEvents(zurichLat, zurichLon, day.Add(3*time.Hour))
	require.NoError(t, err)
	second, err := sc.SunEvents(zurichLat, zurichLon, day.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, sc.Len())

	_, err = sc.SunEvents(zurichLat, zurichLon, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, sc.Len())
}

func TestDaylightHours_Midsummer(t *testing.T) {
	t.Parallel()
	sc := New(0)
	start, end, err := sc.DaylightHours(zurichLat, zurichLon, time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// civil dawn about 02:50 UTC, civil dusk about 20:10 UTC
	assert.Contains(t, []int{2, 3}, start)
	assert.Contains(t, []int{20, 21}, end)
	assert.Less(t, start, end)
}

func TestDaylightHours_PolarNight(t *testing.T) {
	t.Parallel()
	sc := New(0)
	// Longyearbyen in December has no civil dawn
	_, _, err := sc.DaylightHours(78.22, 15.65, time.Date(2021, 12, 21, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
