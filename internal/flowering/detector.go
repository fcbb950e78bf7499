// Package flowering turns a node's per-image flower classifications into
// flowering intervals.
//
// The series is smoothed with a centered moving minimum, so a point counts as
// flowering only when every point in the window around it shows flowers.
// A two-state scan over the smoothed series then yields the intervals.
package flowering

import (
	"fmt"
	"strings"
	"time"

	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
)

// DefaultWindow is the number of points in the moving minimum
const DefaultWindow = 5

// EdgePolicy decides how points without a full window are treated
type EdgePolicy int

const (
	// EdgeHold leaves the scan state unchanged at edge points
	EdgeHold EdgePolicy = iota
	// EdgeAbsent treats edge points as absent
	EdgeAbsent
)

func (p EdgePolicy) String() string {
	switch p {
	case EdgeAbsent:
		return "absent"
	default:
		return "hold"
	}
}

// ParseEdgePolicy accepts "hold" and "absent"
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hold":
		return EdgeHold, nil
	case "absent":
		return EdgeAbsent, nil
	default:
		return EdgeHold, errors.Newf("unknown edge policy %q", s).
			Component("flowering").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Point is one classified image of a node
type Point struct {
	Time  time.Time
	Score int // 1 present, 0 uncertain, -1 absent
}

// Interval is one detected flowering period
type Interval struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// Detector finds flowering intervals
type Detector struct {
	Window     int
	EdgePolicy EdgePolicy
}

// NewDetector validates the window size. The window must be odd so that it
// centers on a point.
func NewDetector(window int, policy EdgePolicy) (Detector, error) {
	if window == 0 {
		window = DefaultWindow
	}
	if window < 1 || window%2 == 0 {
		return Detector{}, errors.Newf("window must be a positive odd number, got %d", window).
			Component("flowering").
			Category(errors.CategoryValidation).
			Build()
	}
	return Detector{Window: window, EdgePolicy: policy}, nil
}

// PointsFromRecords converts a date-ordered node series, dropping
// unclassified images
func PointsFromRecords(records []datastore.ImageRecord) []Point {
	points := make([]Point, 0, len(records))
	for i := range records {
		score, ok := records[i].Flower.Score()
		if !ok {
			continue
		}
		points = append(points, Point{Time: records[i].Date, Score: score})
	}
	return points
}

// smoothed state of one point
type level int8

const (
	undefined level = iota
	absent
	present
)

// smooth computes the centered moving minimum, collapsed to present/absent.
// Points closer than half a window to either end are undefined.
func (d Detector) smooth(series []Point) []level {
	half := d.Window / 2
	out := make([]level, len(series))
	for i := range series {
		if i < half || i+half >= len(series) {
			out[i] = undefined
			continue
		}
		out[i] = present
		for j := i - half; j <= i+half; j++ {
			if series[j].Score != 1 {
				out[i] = absent
				break
			}
		}
	}
	return out
}

// Detect returns the flowering intervals of a date-ordered series
func (d Detector) Detect(series []Point) []Interval {
	if d.Window == 0 {
		d.Window = DefaultWindow
	}
	levels := d.smooth(series)

	var (
		intervals []Interval
		open      bool
		start     time.Time
	)
	for i, lv := range levels {
		if lv == undefined {
			if d.EdgePolicy == EdgeHold {
				continue
			}
			lv = absent
		}
		switch {
		case lv == present && !open:
			open = true
			start = series[i].Time
		case lv == absent && open:
			open = false
			intervals = append(intervals, newInterval(start, series[i].Time))
		}
	}
	if open {
		intervals = append(intervals, newInterval(start, series[len(series)-1].Time))
	}
	return intervals
}

func newInterval(start, end time.Time) Interval {
	return Interval{Start: start, End: end, Duration: end.Sub(start)}
}

// FormatDuration renders d as "<days> days HH:MM:SS"
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%s%d days %02d:%02d:%02d", sign, days, h, m, s)
}
