// Package index provides the exact k-nearest-neighbor vector index and the
// builder that assembles it from chunks and an embedder.
//
// The index is a flat matrix scanned exhaustively with squared Euclidean
// distance: O(n*dim) per query, exact by construction. Corpora in the tens
// of thousands of chunks scan in single-digit milliseconds, so nothing
// approximate is needed; anything smarter can replace Flat behind the same
// method set without touching callers.
package index

import (
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Errors returned by index operations.
var (
	// ErrEmptyCorpus is returned when a build receives zero chunks; an
	// index is never built or persisted from zero vectors.
	ErrEmptyCorpus = errors.New("corpus is empty")

	// ErrSealed is returned by Add after the index is sealed for serving.
	ErrSealed = errors.New("index is sealed")

	// ErrInvalidK is returned by Search when k < 1.
	ErrInvalidK = errors.New("k must be at least 1")
)

// DimensionError reports a vector whose length does not match the index.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: index dimension %d, vector dimension %d", e.Want, e.Got)
}

// SearchResult is one k-NN hit.
type SearchResult struct {
	// ChunkID identifies the chunk whose vector matched.
	ChunkID uint64
	// Distance is the squared Euclidean distance; non-negative,
	// smaller = more similar.
	Distance float32
	// Rank is the 0-based position in the returned ordering.
	Rank int
}

// Flat is the exact exhaustive-scan vector index.
//
// Vectors are stored row-major in one flat slice; row i is the embedding of
// chunk id i. Add is only valid before Seal; a sealed index is immutable
// and safe for unlimited concurrent Search calls.
type Flat struct {
	mu     sync.RWMutex
	dim    int
	data   []float32 // row-major, len = n*dim
	n      int
	sealed bool
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Add appends a vector; its row position becomes its chunk id.
func (f *Flat) Add(vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sealed {
		return ErrSealed
	}
	if len(vector) != f.dim {
		return &DimensionError{Want: f.dim, Got: len(vector)}
	}

	f.data = append(f.data, vector...)
	f.n++
	return nil
}

// Seal makes the index immutable. Idempotent.
func (f *Flat) Seal() {
	f.mu.Lock()
	f.sealed = true
	f.mu.Unlock()
}

// Count returns the number of stored vectors.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.n
}

// Dimension returns the vector dimension.
func (f *Flat) Dimension() int { return f.dim }

// Search returns the min(k, Count()) nearest vectors to query, ascending
// by squared Euclidean distance, ties broken by the lower chunk id.
func (f *Flat) Search(query []float32, k int) ([]SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(query) != f.dim {
		return nil, &DimensionError{Want: f.dim, Got: len(query)}
	}
	if f.n == 0 {
		return []SearchResult{}, nil
	}
	if k > f.n {
		k = f.n
	}

	// Max-heap of the current best k: the worst candidate sits on top and
	// is evicted when a closer row (or equal distance, lower id) appears.
	h := make(candidateHeap, 0, k)
	for i := 0; i < f.n; i++ {
		d := squaredL2(query, f.data[i*f.dim:(i+1)*f.dim])
		c := candidate{id: uint64(i), distance: d}

		if len(h) < k {
			heap.Push(&h, c)
		} else if c.better(h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	results := make([]SearchResult, len(h))
	for i := range results {
		results[i] = SearchResult{ChunkID: h[i].id, Distance: h[i].distance}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	for i := range results {
		results[i].Rank = i
	}
	return results, nil
}

// squaredL2 computes the squared Euclidean distance between equal-length vectors.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// candidate orders search hits: better means closer, or equally close with
// the lower id.
type candidate struct {
	id       uint64
	distance float32
}

func (c candidate) better(other candidate) bool {
	if c.distance != other.distance {
		return c.distance < other.distance
	}
	return c.id < other.id
}

// candidateHeap is a max-heap by "worse": the top is the candidate to evict.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[j].better(h[i]) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// WriteTo writes the vector matrix as little-endian float32 rows.
// The header (count, dim, model identity) lives in the artifact manifest.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := binary.Write(w, binary.LittleEndian, f.data); err != nil {
		return 0, fmt.Errorf("write vector matrix: %w", err)
	}
	return int64(len(f.data)) * 4, nil
}

// ReadFlat reads a sealed index of count rows of dim little-endian float32s.
func ReadFlat(r io.Reader, count, dim int) (*Flat, error) {
	f, err := NewFlat(dim)
	if err != nil {
		return nil, err
	}

	f.data = make([]float32, count*dim)
	if err := binary.Read(r, binary.LittleEndian, f.data); err != nil {
		return nil, fmt.Errorf("read vector matrix: %w", err)
	}
	f.n = count
	f.sealed = true
	return f, nil
}

// Row returns vector i. The returned slice aliases the index storage and
// must not be modified.
func (f *Flat) Row(i int) []float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.data[i*f.dim : (i+1)*f.dim]
}
