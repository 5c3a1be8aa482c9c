// Package chunker splits document content into bounded-size chunks.
package chunker

import (
	"fmt"
	"strings"
)

// WordChunker splits text on whitespace into chunks of at most Size words.
// Consecutive chunks do not overlap. Used by the custom (local) backend.
type WordChunker struct {
	size int
}

// NewWordChunker creates a word chunker. size must be positive.
func NewWordChunker(size int) (*WordChunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", size)
	}
	return &WordChunker{size: size}, nil
}

// Chunk splits text into word chunks. Empty input yields nil; input with at
// most Size words yields exactly one chunk. Concatenating the words of all
// chunks reproduces the word sequence of the input.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(words)+c.size-1)/c.size)
	for i := 0; i < len(words); i += c.size {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// CharChunker splits text into character windows of Size with Overlap
// characters shared between consecutive windows. Window ends snap backward
// to the nearest preceding space so words are not split. Used by the
// integrated (managed) backend.
type CharChunker struct {
	size    int
	overlap int
}

// NewCharChunker creates a character-window chunker. overlap must be
// smaller than size; otherwise the window advance (size - overlap) would
// stall and the chunker could loop forever, so that configuration is
// rejected outright.
func NewCharChunker(size, overlap int) (*CharChunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &CharChunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping character windows. Empty input yields
// nil; input no longer than Size yields exactly one chunk.
func (c *CharChunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []string{text}
	}
	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.size
		if end < len(text) {
			if last := strings.LastIndex(text[start:end], " "); last > 0 {
				end = start + last
			}
		} else {
			end = len(text)
		}
		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
