// Package suncalc computes sun events for camera node locations. Capture
// times are stored in UTC, so all results are in UTC as well.
package suncalc

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sj14/astral/pkg/astral"

	"github.com/WullT/P8-Tools/internal/errors"
)

// DefaultCacheTTL is how long computed sun events are kept
const DefaultCacheTTL = 24 * time.Hour

// SunEventTimes holds the sun events of one day in UTC
type SunEventTimes struct {
	CivilDawn time.Time `json:"civil_dawn"`
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
	CivilDusk time.Time `json:"civil_dusk"`
}

// SunCalc calculates and caches sun events per location and day
type SunCalc struct {
	cache *cache.Cache
}

// New creates a SunCalc whose entries expire after ttl
func New(ttl time.Duration) *SunCalc {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &SunCalc{cache: cache.New(ttl, 2*ttl)}
}

func cacheKey(lat, lon float64, day time.Time) string {
	return fmt.Sprintf("%.5f,%.5f,%s", lat, lon, day.Format(time.DateOnly))
}

// SunEvents returns the sun events at (lat, lon) on the UTC day of date
func (sc *SunCalc) SunEvents(lat, lon float64, date time.Time) (SunEventTimes, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	key := cacheKey(lat, lon, day)
	if v, ok := sc.cache.Get(key); ok {
		return v.(SunEventTimes), nil
	}

	times, err := calculate(astral.Observer{Latitude: lat, Longitude: lon}, day)
	if err != nil {
		return SunEventTimes{}, errors.New(err).
			Component("suncalc").
			Category(errors.CategoryProcessing).
			Context("latitude", lat).
			Context("longitude", lon).
			Context("date", day.Format(time.DateOnly)).
			Build()
	}
	sc.cache.SetDefault(key, times)
	return times, nil
}

func calculate(observer astral.Observer, day time.Time) (SunEventTimes, error) {
	civilDawn, err := astral.Dawn(observer, day, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}
	sunrise, err := astral.Sunrise(observer, day)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}
	sunset, err := astral.Sunset(observer, day)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}
	civilDusk, err := astral.Dusk(observer, day, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}
	return SunEventTimes{
		CivilDawn: civilDawn.UTC(),
		Sunrise:   sunrise.UTC(),
		Sunset:    sunset.UTC(),
		CivilDusk: civilDusk.UTC(),
	}, nil
}

// DaylightHours returns the whole UTC hours covering civil dawn to civil dusk,
// as start and end hour bounds for an image selection
func (sc *SunCalc) DaylightHours(lat, lon float64, date time.Time) (start, end int, err error) {
	times, err := sc.SunEvents(lat, lon, date)
	if err != nil {
		return 0, 0, err
	}
	start = times.CivilDawn.Hour()
	end = times.CivilDusk.Hour()
	if times.CivilDusk.Minute() > 0 || times.CivilDusk.Second() > 0 {
		end++
	}
	// dusk after midnight UTC wraps to the next day
	if end > 23 || times.CivilDusk.YearDay() != times.CivilDawn.YearDay() {
		end = 23
	}
	return start, end, nil
}

// Len returns the number of cached days
func (sc *SunCalc) Len() int {
	return sc.cache.ItemCount()
}
