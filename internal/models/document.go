// Package models defines core data structures for documents, chunks, and search results.
package models

import (
	"fmt"
	"time"
)

// Document is a caller-supplied document to be indexed. ID and Content are
// required; the pipeline fills defaults for the remaining fields before any
// backend sees the document.
type Document struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Title    string                 `json:"title,omitempty"`
	Source   string                 `json:"source,omitempty"`
	Category string                 `json:"category,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Chunk is a bounded slice of a document's content, indexed independently
// with its own embedding. Chunk IDs are "<documentID>_chunk_<index>" and are
// globally unique; all chunks of a document share DocumentID, which is the
// grouping key for bulk delete.
type Chunk struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Content    string                 `json:"content"`
	Title      string                 `json:"title"`
	Source     string                 `json:"source"`
	Category   string                 `json:"category"`
	Vector     []float32              `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ChunkID builds the stable chunk identifier for a document and chunk index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// ChunksFor derives the chunk records for a validated document from the
// given chunk texts, copying the document's descriptive fields onto each.
func ChunksFor(doc *Document, texts []string, now time.Time) []*Chunk {
	chunks := make([]*Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    text,
			Title:      doc.Title,
			Source:     doc.Source,
			Category:   doc.Category,
			Metadata:   doc.Metadata,
			CreatedAt:  now,
		}
	}
	return chunks
}
