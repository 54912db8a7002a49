// Package chunk splits normalized corpus text into an ordered sequence of
// overlapping fixed-size chunks.
//
// The chunker works in runes: the caller converts its token-denominated
// window to runes (see config.ChunkingConfig.RuneWindow). Windows start at
// offsets 0, size-overlap, 2*(size-overlap), ... until the start reaches
// the text length; the final window may be shorter than size and is still
// emitted, so every rune of the input is covered by at least one chunk.
package chunk

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned when the (size, overlap) pair violates
// 0 <= overlap < size.
var ErrInvalidWindow = errors.New("chunk window must satisfy 0 <= overlap < size")

// Chunk is a contiguous slice of the normalized corpus text.
//
// IDs are dense, zero-based, and assigned in traversal order; Start and End
// are rune offsets into the consolidated corpus ([Start, End)).
type Chunk struct {
	ID    uint64
	Text  string
	Start int
	End   int
}

// Chunker cuts overlapping fixed-size windows.
type Chunker struct {
	size    int // window length in runes
	overlap int // runes shared with the previous window
}

// NewChunker creates a chunker with the given window size and overlap,
// both in runes.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidWindow, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the window overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Stride returns the distance between consecutive window starts.
func (c *Chunker) Stride() int { return c.size - c.overlap }

// Split cuts text into chunks. Empty text yields no chunks; text shorter
// than the window yields exactly one chunk covering all of it.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := c.Stride()
	chunks := make([]Chunk, 0, (len(runes)+stride-1)/stride)

	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			ID:    uint64(len(chunks)),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		// A window that already reaches the end of the text terminates the
		// sequence; a further window would add no new runes.
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Count returns the number of chunks Split would produce for a text of
// n runes: ceil(max(n-overlap, 0) / stride). For 0 < n <= overlap the
// formula alone gives 0, but Split still emits the single short window
// covering the whole text, so Count reports 1 there.
func (c *Chunker) Count(n int) int {
	if n <= 0 {
		return 0
	}
	covered := n - c.overlap
	if covered < 0 {
		covered = 0
	}
	stride := c.Stride()
	count := (covered + stride - 1) / stride
	if count < 1 {
		// Non-empty text always produces at least the single short window.
		count = 1
	}
	return count
}
