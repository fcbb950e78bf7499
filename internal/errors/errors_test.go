package errors

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.GetTimestamp().IsZero())
}

func TestBuildNilError(t *testing.T) {
	t.Parallel()

	ee := New(nil).Component("datastore").Build()
	assert.Equal(t, "unknown error", ee.Error())
	assert.Equal(t, CategoryDatabase, ee.Category)
}

func TestCategoryHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category ErrorCategory
		check    func(error) bool
	}{
		{"not found", CategoryNotFound, IsNotFound},
		{"parse", CategoryFileParsing, IsParse},
		{"geometry", CategoryGeometry, IsGeometry},
		{"database", CategoryDatabase, IsDatabase},
		{"validation", CategoryValidation, IsValidation},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := New(NewStd("boom")).Category(tt.category).Build()
			assert.True(t, tt.check(err))

			// wrapped errors still match
			wrapped := fmt.Errorf("outer: %w", err)
			assert.True(t, tt.check(wrapped))

			other := New(NewStd("boom")).Category(CategoryGeneric).Build()
			assert.False(t, tt.check(other))
			assert.False(t, tt.check(NewStd("plain")))
		})
	}
}

func TestDetectCategoryFromMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"record not found", CategoryNotFound},
		{"invalid box", CategoryValidation},
		{"open x: no such file or directory", CategoryFileIO},
		{"something odd", CategoryGeneric},
	}
	for _, tt := range tests {
		ee := New(NewStd(tt.msg)).Component("scanner").Build()
		assert.Equal(t, tt.want, ee.Category, tt.msg)
	}
}

func TestContextIsCopied(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).
		Component("annotation").
		Context("image", "n1_2022-06-01T10-00-00Z.jpg").
		FileContext("/data/n1_2022-06-01T10-00-00Z.jpg").
		Timing("export", 1500*time.Millisecond).
		Build()

	ctx := ee.GetContext()
	require.NotNil(t, ctx)
	assert.Equal(t, "jpg", ctx["file_extension"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])

	ctx["image"] = "changed"
	assert.Equal(t, "n1_2022-06-01T10-00-00Z.jpg", ee.GetContext()["image"])
	assert.Equal(t, "annotation", ee.GetComponent())
}

func TestPriorityNormalization(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PriorityHigh, New(NewStd("x")).Priority(PriorityHigh).Build().GetPriority())
	assert.Equal(t, PriorityMedium, New(NewStd("x")).Priority("urgent").Build().GetPriority())
	assert.Empty(t, New(NewStd("x")).Build().GetPriority())
}

func TestIsMatchesWrappedSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("wrap: %w", sentinel)).Build()
	assert.True(t, Is(ee, sentinel))
	assert.Equal(t, sentinel, Unwrap(Unwrap(ee)))
}

func TestComponentFromFunc(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "datastore", componentFromFunc(modulePrefix+"datastore.(*DataStore).Get"))
	assert.Equal(t, "", componentFromFunc(modulePrefix+"errors.New"))
	assert.Equal(t, "", componentFromFunc("main.main"))
}

//nolint:paralleltest // mutates global hooks
func TestErrorHooks(t *testing.T) {
	ClearErrorHooks()
	t.Cleanup(ClearErrorHooks)

	var count atomic.Int32
	AddErrorHook(func(ee *EnhancedError) {
		if ee.Category == CategoryGeometry {
			count.Add(1)
		}
	})

	New(NewStd("zero width")).Category(CategoryGeometry).Build()
	New(NewStd("other")).Category(CategoryDatabase).Build()

	assert.Equal(t, int32(1), count.Load())
}
