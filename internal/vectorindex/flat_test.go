package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFixesDimension(t *testing.T) {
	f := NewFlat()
	require.NoError(t, f.Add([][]float32{{1, 0, 0}}))
	assert.Equal(t, 3, f.Dim())
	assert.Equal(t, 1, f.Size())

	err := f.Add([][]float32{{1, 0}})
	assert.Error(t, err)
	assert.Equal(t, 1, f.Size(), "failed batch must not be partially applied")
}

func TestAddRejectsEmptyVector(t *testing.T) {
	f := NewFlat()
	assert.Error(t, f.Add([][]float32{{}}))
}

func TestSearchAscendingByDistance(t *testing.T) {
	f := NewFlat()
	require.NoError(t, f.Add([][]float32{
		{0, 0}, // id 0, dist 2 from (1,1)
		{1, 1}, // id 1, dist 0
		{2, 2}, // id 2, dist 2
		{5, 5}, // id 3, dist 32
	}))

	dists, ids := f.Search([]float32{1, 1}, 3)
	require.Equal(t, []int{1, 0, 2}, ids, "ties break by ascending id")
	assert.Equal(t, float32(0), dists[0])
	assert.Equal(t, float32(2), dists[1])
	assert.Equal(t, float32(2), dists[2])
}

func TestSearchClampsK(t *testing.T) {
	f := NewFlat()
	require.NoError(t, f.Add([][]float32{{0}, {1}}))

	_, ids := f.Search([]float32{0}, 10)
	assert.Len(t, ids, 2)

	dists, ids := f.Search([]float32{0}, 0)
	assert.Nil(t, dists)
	assert.Nil(t, ids)
}

func TestSearchEmptyIndex(t *testing.T) {
	f := NewFlat()
	dists, ids := f.Search([]float32{1, 2}, 5)
	assert.Nil(t, dists)
	assert.Nil(t, ids)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := NewFlat()
	require.NoError(t, f.Add([][]float32{{1, 2, 3}, {4, 5, 6}}))

	path := filepath.Join(t.TempDir(), "doc.index")
	require.NoError(t, f.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Size())
	assert.Equal(t, 3, loaded.Dim())

	_, ids := loaded.Search([]float32{4, 5, 6}, 1)
	assert.Equal(t, []int{1}, ids)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.index"))
	assert.Error(t, err)
}
