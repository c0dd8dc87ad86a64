// Package chunker slices page texts into overlapping, word-bounded chunks.
package chunker

import "strings"

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 250
	// DefaultOverlap is the requested overlap between consecutive chunks
	// in characters, realized as a whole-word overlap.
	DefaultOverlap = 25
)

// Chunker produces chunks with an approximate character budget.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a chunker; non-positive arguments fall back to defaults.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split joins the pages with blank-line separators and walks the text
// word by word, emitting chunks whose length stays within the target.
// On rollover the next chunk is re-seeded with the trailing words whose
// combined length covers the requested character overlap, so chunk
// boundaries never cut a word and every word lands in at least one chunk.
func (c *Chunker) Split(pages []string) []string {
	words := strings.Fields(strings.Join(pages, "\n\n"))
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))
		seed := overlapWords(current, c.overlap)
		current = append([]string(nil), seed...)
		currentLen = joinedLen(current)
	}

	for _, w := range words {
		add := len(w)
		if currentLen > 0 {
			add++ // separating space
		}
		if currentLen+add > c.chunkSize && len(current) > 0 {
			flush()
			if currentLen > 0 {
				currentLen++
			}
			currentLen += len(w)
			current = append(current, w)
			continue
		}
		current = append(current, w)
		currentLen += add
	}
	if len(current) > 0 {
		// Drop a tail that is pure overlap of the previous chunk.
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], strings.Join(current, " ")) {
			chunks = append(chunks, strings.Join(current, " "))
		}
	}
	return chunks
}

// overlapWords returns the shortest trailing word run whose joined length
// reaches the requested character overlap.
func overlapWords(words []string, overlap int) []string {
	if overlap <= 0 || len(words) == 0 {
		return nil
	}
	total := 0
	i := len(words)
	for i > 0 {
		next := len(words[i-1])
		if total > 0 {
			next++
		}
		if total+next > overlap && total > 0 {
			break
		}
		total += next
		i--
	}
	// Never seed the whole chunk back; that would stall progress.
	if i == 0 {
		i = len(words) - 1
		if i == 0 {
			return nil
		}
	}
	return words[i:]
}

func joinedLen(words []string) int {
	if len(words) == 0 {
		return 0
	}
	n := len(words) - 1
	for _, w := range words {
		n += len(w)
	}
	return n
}
