package flowering

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2021, 6, 1, 8, 0, 0, 0, time.UTC)

func hourly(scores ...int) []Point {
	points := make([]Point, len(scores))
	for i, s := range scores {
		points[i] = Point{Time: t0.Add(time.Duration(i) * time.Hour), Score: s}
	}
	return points
}

func at(i int) time.Time {
	return t0.Add(time.Duration(i) * time.Hour)
}

func TestDetect_Scenario(t *testing.T) {
	t.Parallel()
	series := hourly(1, 1, 1, 1, 1, 0, 0, -1, 1, 1, 1, 1, 1)

	tests := []struct {
		name   string
		policy EdgePolicy
		want   []Interval
	}{
		{
			name:   "hold",
			policy: EdgeHold,
			want: []Interval{
				{Start: at(2), End: at(3), Duration: time.Hour},
				{Start: at(10), End: at(12), Duration: 2 * time.Hour},
			},
		},
		{
			name:   "absent",
			policy: EdgeAbsent,
			want: []Interval{
				{Start: at(2), End: at(3), Duration: time.Hour},
				{Start: at(10), End: at(11), Duration: time.Hour},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := NewDetector(5, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Detect(series))
		})
	}
}

func TestDetect_EdgeCases(t *testing.T) {
	t.Parallel()
	d := Detector{Window: 5}

	assert.Empty(t, d.Detect(nil))
	assert.Empty(t, d.Detect(hourly(1, 1, 1, 1)), "shorter than the window")
	assert.Empty(t, d.Detect(hourly(0, 0, 0, 0, 0, 0)))

	// an unbroken run is trimmed to points with a full window and closes at the last point
	assert.Equal(t, []Interval{{Start: at(2), End: at(8), Duration: 6 * time.Hour}},
		d.Detect(hourly(1, 1, 1, 1, 1, 1, 1, 1, 1)))

	// uncertain counts as absent
	assert.Empty(t, d.Detect(hourly(1, 1, 0, 1, 1)))

	// window of one is the raw series
	raw := Detector{Window: 1, EdgePolicy: EdgeHold}
	assert.Equal(t, []Interval{
		{Start: at(1), End: at(2), Duration: time.Hour},
		{Start: at(3), End: at(3), Duration: 0},
	}, raw.Detect(hourly(-1, 1, 0, 1)))
}

func TestNewDetector(t *testing.T) {
	t.Parallel()
	d, err := NewDetector(0, EdgeAbsent)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow, d.Window)

	for _, w := range []int{-1, 2, 4} {
		_, err := NewDetector(w, EdgeHold)
		assert.Error(t, err, "window %d", w)
	}

	p, err := ParseEdgePolicy("Absent")
	require.NoError(t, err)
	assert.Equal(t, EdgeAbsent, p)
	_, err = ParseEdgePolicy("drop")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0 days 01:00:00", FormatDuration(time.Hour))
	assert.Equal(t, "2 days 03:04:05", FormatDuration(51*time.Hour+4*time.Minute+5*time.Second))
	assert.Equal(t, "0 days 00:00:00", FormatDuration(0))
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Interval{{Start: at(2), End: at(3), Duration: time.Hour}}))
	assert.Equal(t,
		"start,end,duration\n2021-06-01T10:00:00Z,2021-06-01T11:00:00Z,0 days 01:00:00\n",
		buf.String())
}
