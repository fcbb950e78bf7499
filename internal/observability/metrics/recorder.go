package metrics

// Recorder defines the minimal interface components use to record metrics,
// so they can depend on an abstraction rather than concrete collectors.
type Recorder interface {
	// RecordOperation records an operation with its status
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its category
	RecordError(operation, category string)
}

// NoopRecorder discards everything. It is the default when no registry is wired.
type NoopRecorder struct{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string) {}

var _ Recorder = NoopRecorder{}
