// Package selection builds the filtered, ordered image lists browsed by the
// labeling front ends.
package selection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// Status selects images by classification state
type Status int

const (
	StatusAll Status = iota + 1
	StatusUnclassified
	StatusClassified
	StatusUncertain
	StatusFavorite
)

var statusNames = map[Status]string{
	StatusAll:          "all",
	StatusUnclassified: "unclassified",
	StatusClassified:   "classified",
	StatusUncertain:    "uncertain",
	StatusFavorite:     "favorite",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus accepts a status name or its number (1-5)
func ParseStatus(v string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(v))
	if key == "" {
		return StatusAll, nil
	}
	for s, name := range statusNames {
		if key == name || key == fmt.Sprint(int(s)) {
			return s, nil
		}
	}
	return 0, errors.Newf("unknown selection status %q", v).
		Component("selection").
		Category(errors.CategoryValidation).
		Build()
}

// Bounds is the default time-of-day range of the browser. Query bounds equal
// to these are treated as no bound.
type Bounds struct {
	StartHour int
	EndHour   int
}

// Query describes one selection. Nil hours and an empty node are open.
type Query struct {
	NodeID    string
	StartHour *int
	EndHour   *int
	From, To  time.Time // optional capture date range, To exclusive
	Status    Status

	// ExplicitHours keeps hour bounds that equal the defaults, for bounds
	// that were computed rather than picked in the browser
	ExplicitHours bool
}

// Hour returns a pointer to h, for building queries
func Hour(h int) *int {
	return &h
}

// Normalize drops hour bounds that equal the default range unless the
// query marks its hours as explicit
func (q Query) Normalize(b Bounds) Query {
	if !q.ExplicitHours {
		if q.StartHour != nil && *q.StartHour == b.StartHour {
			q.StartHour = nil
		}
		if q.EndHour != nil && *q.EndHour == b.EndHour {
			q.EndHour = nil
		}
	}
	if q.Status == 0 {
		q.Status = StatusAll
	}
	return q
}

// Validate checks hour ranges and the status value
func (q Query) Validate() error {
	for field, h := range map[string]*int{"start_hour": q.StartHour, "end_hour": q.EndHour} {
		if h != nil && (*h < 0 || *h > 23) {
			return errors.Newf("%s must be between 0 and 23, got %d", field, *h).
				Component("selection").
				Category(errors.CategoryValidation).
				Context("field", field).
				Build()
		}
	}
	if _, ok := statusNames[q.Status]; !ok && q.Status != 0 {
		return errors.Newf("unknown selection status %d", int(q.Status)).
			Component("selection").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Scopes translates the query into store scopes, availability included
func (q Query) Scopes(d datastore.Dialect) []datastore.Scope {
	scopes := []datastore.Scope{AvailableOnly()}
	if q.NodeID != "" {
		scopes = append(scopes, NodeEquals(q.NodeID))
	}
	if q.StartHour != nil || q.EndHour != nil {
		scopes = append(scopes, TimeOfDayBetween(d, q.StartHour, q.EndHour))
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		scopes = append(scopes, DateBetween(q.From, q.To))
	}
	if q.Status != StatusAll && q.Status != 0 {
		scopes = append(scopes, StatusIs(q.Status))
	}
	return scopes
}

// Result is the outcome of a selection. The zero Result has not been queried.
type Result struct {
	Query   Query
	Images  []datastore.ImageRecord
	queried bool
}

// Queried reports whether the result comes from a store query
func (r Result) Queried() bool { return r.queried }

// Empty reports a query that matched nothing
func (r Result) Empty() bool { return r.queried && len(r.Images) == 0 }

// Len returns the number of selected images
func (r Result) Len() int { return len(r.Images) }

// Filenames returns the selected filenames in order
func (r Result) Filenames() []string {
	out := make([]string, len(r.Images))
	for i := range r.Images {
		out[i] = r.Images[i].Filename
	}
	return out
}

// Engine runs selections against a store
type Engine struct {
	store   datastore.Interface
	bounds  Bounds
	log     logger.Logger
	metrics *metrics.LabelingMetrics
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records selection sizes and errors
func WithMetrics(m *metrics.LabelingMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a selection engine
func NewEngine(store datastore.Interface, bounds Bounds, opts ...Option) *Engine {
	e := &Engine{store: store, bounds: bounds}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Global().Module("selection")
	}
	return e
}

// Bounds returns the default time-of-day range
func (e *Engine) Bounds() Bounds {
	return e.bounds
}

// Select returns the available images matching q, ordered by node and date
func (e *Engine) Select(ctx context.Context, q Query) (Result, error) {
	q = q.Normalize(e.bounds)
	if err := q.Validate(); err != nil {
		e.record(q, 0, err)
		return Result{}, err
	}

	images, err := e.store.FindImages(ctx, q.Scopes(e.store.Dialect())...)
	e.record(q, len(images), err)
	if err != nil {
		e.log.Error("selection failed",
			logger.String("node_id", q.NodeID),
			logger.String("status", q.Status.String()),
			logger.Error(err))
		return Result{}, err
	}

	e.log.Debug("selection done",
		logger.String("node_id", q.NodeID),
		logger.String("status", q.Status.String()),
		logger.Int("images", len(images)))
	return Result{Query: q, Images: images, queried: true}, nil
}

func (e *Engine) record(q Query, n int, err error) {
	if e.metrics != nil {
		e.metrics.RecordSelection(q.Status.String(), n, err)
	}
}
