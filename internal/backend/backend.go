// Package backend provides the retrieval backend contract and its two
// implementations: a local metadata store that scores chunks by full scan,
// and a managed search engine client that delegates scoring remotely.
package backend

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/hyperjump/kensaku/internal/fusion"
	"github.com/hyperjump/kensaku/internal/models"
)

// Backend is the common contract for both retrieval variants. The pipeline
// depends only on this interface.
type Backend interface {
	// IndexDocuments chunks, embeds, and persists each document. Per-document
	// failures are recorded in the result's Errors and counted in
	// FailedCount; processing continues with the remaining documents.
	IndexDocuments(ctx context.Context, docs []*models.Document) (*models.IndexResult, error)
	// Search returns at most topK results ordered by descending score.
	// Filters are equality matches on indexed metadata fields, conjoined.
	Search(ctx context.Context, query string, searchType models.SearchType, topK int, filters map[string]interface{}) ([]*models.SearchResult, error)
	// DeleteDocument removes every chunk sharing documentID. It returns true
	// iff at least one chunk was removed; a missing document is a normal
	// false result, not an error.
	DeleteDocument(ctx context.Context, documentID string) (bool, error)
	// DocumentCount returns the number of distinct documents indexed.
	DocumentCount(ctx context.Context) (int, error)
	// HealthCheck reports backend health. Connectivity failures are captured
	// in the status, never returned.
	HealthCheck(ctx context.Context) models.HealthStatus
	Close() error
}

// Approach identifies a backend variant.
type Approach string

const (
	// ApproachCustom performs similarity math locally over a flat metadata store.
	ApproachCustom Approach = "custom"
	// ApproachIntegrated delegates scoring to a managed search engine.
	ApproachIntegrated Approach = "integrated"
)

// Config is an immutable snapshot of the parameters for one backend
// instance. A backend owns exactly one Config for its lifetime; switching
// approach builds a new Config and a new backend instance.
type Config struct {
	Approach Approach

	// Custom backend.
	DatabasePath string

	// Integrated backend.
	Endpoint   string
	APIKey     string
	IndexName  string
	APIVersion string

	Dimension    int
	ChunkSize    int
	ChunkOverlap int

	HybridWeights   fusion.Weights
	SemanticWeights fusion.Weights
	// EnableSemantic adds semantic re-ranking parameters to the managed
	// backend's hybrid queries.
	EnableSemantic bool
}

// cosineSimilarity returns dot(a,b)/(|a|*|b|) in [-1,1]. Mismatched or
// zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// vectorToBytes encodes a float32 vector as little-endian bytes for storage.
func vectorToBytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(x))
	}
	return out
}

// bytesToVector decodes a little-endian byte blob back into a float32 vector.
func bytesToVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
