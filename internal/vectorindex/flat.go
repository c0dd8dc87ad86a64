// Package vectorindex provides a flat L2 nearest-neighbor index with file
// persistence. The index stores only vectors; chunk and page texts live in
// sidecar files owned by the repository layer.
package vectorindex

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Flat is a brute-force L2 index. A single writer populates it at build
// time; after persistence readers search without locking.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index. The dimension is fixed by the first
// batch added.
func NewFlat() *Flat { return &Flat{} }

// Size returns the number of stored vectors.
func (f *Flat) Size() int { return len(f.vectors) }

// Dim returns the vector dimension, or 0 for an empty index.
func (f *Flat) Dim() int { return f.dim }

// Add appends a batch of vectors. Every row must share the index's
// dimension.
func (f *Flat) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) == 0 {
			return errors.New("vectorindex: empty vector")
		}
		if f.dim == 0 {
			f.dim = len(v)
		}
		if len(v) != f.dim {
			return fmt.Errorf("vectorindex: dimension mismatch: got %d, index has %d", len(v), f.dim)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Search returns the k nearest rows to query by squared L2 distance, in
// ascending order. k larger than the index size clamps to the size.
func (f *Flat) Search(query []float32, k int) (distances []float32, ids []int) {
	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}

	type hit struct {
		dist float32
		id   int
	}
	hits := make([]hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = hit{dist: l2sq(query, v), id: i}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].dist != hits[b].dist {
			return hits[a].dist < hits[b].dist
		}
		return hits[a].id < hits[b].id
	})

	distances = make([]float32, k)
	ids = make([]int, k)
	for i := 0; i < k; i++ {
		distances[i] = hits[i].dist
		ids[i] = hits[i].id
	}
	return distances, ids
}

func l2sq(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

type flatFile struct {
	Dim     int
	Vectors [][]float32
}

// Save serializes the index to path.
func (f *Flat) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(flatFile{Dim: f.dim, Vectors: f.vectors})
}

// Load reads an index previously written by Save.
func Load(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data flatFile
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("vectorindex: decode %s: %w", path, err)
	}
	return &Flat{dim: data.Dim, vectors: data.Vectors}, nil
}
