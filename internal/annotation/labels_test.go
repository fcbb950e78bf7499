package annotation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
)

func record(t *testing.T, annotType datastore.AnnotationType, id int, b Box) datastore.AnnotationRecord {
	t.Helper()
	b.ID = id
	recs, err := ToRecords("img.jpg", annotType, []Box{b}, 1000, 500)
	require.NoError(t, err)
	return recs[0]
}

func TestLabelLines_ClassPrefix(t *testing.T) {
	t.Parallel()
	recs := []datastore.AnnotationRecord{
		record(t, datastore.TypeWildCarrot, 0, Box{X0: 100, Y0: 50, X1: 300, Y1: 150}),
		record(t, datastore.TypeWildCarrot, 1, Box{X0: 0, Y0: 0, X1: 10, Y1: 10}),
	}
	lines, err := LabelLines(recs, DefaultClassMap())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "1 "), l)
	}
	assert.Equal(t, "1 0.200000 0.200000 0.200000 0.200000", lines[0])
}

func TestLabelLines_OrderAndUnmapped(t *testing.T) {
	t.Parallel()
	cm, err := NewClassMap(map[datastore.AnnotationType]int{
		datastore.TypeCornflower: 0,
		datastore.TypeDaisy:      1,
	}, nil)
	require.NoError(t, err)

	recs := []datastore.AnnotationRecord{
		record(t, datastore.TypeDaisy, 1, Box{X0: 0, Y0: 0, X1: 2, Y1: 2}),
		record(t, datastore.TypeWildCarrot, 0, Box{X0: 0, Y0: 0, X1: 2, Y1: 2}),
		record(t, datastore.TypeDaisy, 0, Box{X0: 0, Y0: 0, X1: 4, Y1: 4}),
		record(t, datastore.TypeCornflower, 0, Box{X0: 0, Y0: 0, X1: 2, Y1: 2}),
	}
	lines, err := LabelLines(recs, cm)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "0 "))
	assert.Equal(t, "1 0.002000 0.004000 0.004000 0.008000", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1 "))

	assert.Empty(t, LabelFile(nil))
	assert.Equal(t, "a\nb\n", LabelFile([]string{"a", "b"}))
}

func TestLabelLines_ZeroImageSize(t *testing.T) {
	t.Parallel()
	rec := datastore.AnnotationRecord{AnnotType: datastore.TypeDaisy, X1: 1, Y1: 1}
	_, err := LabelLines([]datastore.AnnotationRecord{rec}, DefaultClassMap())
	assert.Error(t, err)
}

func TestClassMap(t *testing.T) {
	t.Parallel()
	cm := DefaultClassMap()
	assert.Equal(t, []datastore.AnnotationType{datastore.TypeDaisy, datastore.TypeWildCarrot, datastore.TypeCornflower}, cm.Types())
	assert.Equal(t, []string{"daisy", "wildcarrot", "cornflower"}, cm.Names())
	class, ok := cm.Class(datastore.TypeCornflower)
	assert.True(t, ok)
	assert.Equal(t, 2, class)

	_, err := NewClassMap(map[datastore.AnnotationType]int{
		datastore.TypeDaisy:      0,
		datastore.TypeWildCarrot: 0,
	}, nil)
	assert.Error(t, err, "not injective")

	_, err = NewClassMap(map[datastore.AnnotationType]int{7: 0}, nil)
	assert.Error(t, err, "unknown type")

	cm, err = ClassMapFromSettings([]conf.ClassSetting{
		{Type: 4, Class: 0, Name: "centaurea"},
		{Type: 2, Class: 3, Name: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"centaurea", "", "", "daisy"}, cm.Names())

	_, err = ClassMapFromSettings([]conf.ClassSetting{{Type: 2, Class: 0}, {Type: 2, Class: 1}})
	assert.Error(t, err)
}
