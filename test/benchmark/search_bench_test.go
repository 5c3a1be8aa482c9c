package benchmark

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/fusion"
	"github.com/hyperjump/kensaku/internal/models"
)

func BenchmarkHybridFusion(b *testing.B) {
	vec := make(map[string]float64)
	text := make(map[string]float64)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("doc_%d_chunk_0", i)
		vec[id] = float64(i) / 100
		text[id] = float64(100 - i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = fusion.Hybrid(vec, text, fusion.DefaultHybridWeights)
	}
}

func BenchmarkLocalVectorSearch(b *testing.B) {
	emb := embedding.NewMockEmbedder(64)
	back, err := backend.NewLocalBackend(backend.Config{
		Approach:        backend.ApproachCustom,
		DatabasePath:    ":memory:",
		Dimension:       64,
		ChunkSize:       200,
		ChunkOverlap:    20,
		HybridWeights:   fusion.DefaultHybridWeights,
		SemanticWeights: fusion.DefaultSemanticWeights,
	}, emb, zap.NewNop())
	if err != nil {
		b.Fatal(err)
	}
	defer back.Close()

	ctx := context.Background()
	docs := make([]*models.Document, 200)
	for i := range docs {
		docs[i] = &models.Document{
			ID:      fmt.Sprintf("doc-%d", i),
			Content: fmt.Sprintf("benchmark corpus document number %d about topic %d", i, i%10),
		}
	}
	if _, err := back.IndexDocuments(ctx, docs); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = back.Search(ctx, "topic 3", models.SearchTypeVector, 10, nil)
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
