package backend

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/fusion"
	"github.com/hyperjump/kensaku/internal/models"
)

func localTestConfig() Config {
	return Config{
		Approach:        ApproachCustom,
		DatabasePath:    ":memory:",
		Dimension:       8,
		ChunkSize:       50,
		ChunkOverlap:    10,
		HybridWeights:   fusion.DefaultHybridWeights,
		SemanticWeights: fusion.DefaultSemanticWeights,
	}
}

func newLocalForTest(t *testing.T) (*LocalBackend, *embedding.MockEmbedder) {
	t.Helper()
	emb := embedding.NewMockEmbedder(8)
	b, err := NewLocalBackend(localTestConfig(), emb, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, emb
}

func TestLocalBackend_IndexAndVectorSearch(t *testing.T) {
	ctx := context.Background()
	b, _ := newLocalForTest(t)

	result, err := b.IndexDocuments(ctx, []*models.Document{
		{ID: "d1", Content: "alpha beta", Title: "T1", Source: "unit", Category: "general"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.SuccessCount != 1 || result.FailedCount != 0 {
		t.Fatalf("success=%d failed=%d, want 1/0", result.SuccessCount, result.FailedCount)
	}
	if result.TotalChunks != 1 {
		t.Fatalf("total_chunks = %d, want 1", result.TotalChunks)
	}

	// The mock embedder is deterministic, so the same text embeds to the
	// same vector and the indexed chunk must come back with score ~= 1.
	results, err := b.Search(ctx, "alpha beta", models.SearchTypeVector, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ID != "d1_chunk_0" {
		t.Errorf("top result id = %s, want d1_chunk_0", results[0].ID)
	}
	if math.Abs(results[0].Score-1.0) > 1e-5 {
		t.Errorf("top score = %f, want ~1.0", results[0].Score)
	}
	if results[0].DocumentID != "d1" || results[0].ChunkIndex != 0 {
		t.Errorf("result identity fields wrong: %+v", results[0])
	}
}

func TestLocalBackend_TextSearchScoresTermCounts(t *testing.T) {
	ctx := context.Background()
	b, _ := newLocalForTest(t)

	_, err := b.IndexDocuments(ctx, []*models.Document{
		{ID: "d1", Content: "machine learning", Category: "general"},
		{ID: "d2", Content: "cloud computing", Category: "general"},
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := b.Search(ctx, "machine", models.SearchTypeText, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].DocumentID != "d1" {
		t.Errorf("top result document = %s, want d1", results[0].DocumentID)
	}
	if results[0].Score != 1 {
		t.Errorf("score = %v, want 1 (single term occurrence)", results[0].Score)
	}
}

func TestLocalBackend_TextSearchSumsAllTerms(t *testing.T) {
	ctx := context.Background()
	b, _ := newLocalForTest(t)

	if _, err := b.IndexDocuments(ctx, []*models.Document{
		{ID: "d1", Content: "go go go gopher"},
	}); err != nil {
		t.Fatal(err)
	}
	results, err := b.Search(ctx, "go gopher", models.SearchTypeText, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	// "go" occurs 4 times as a substring (3 words plus the prefix of
	// gopher), "gopher" once.
	if results[0].Score != 5 {
		t.Errorf("score = %v, want 5", results[0].Score)
	}
}

func TestLocalBackend_Filters(t *testing.T) {
	ctx := context.Background()
	b, _ := newLocalForTest(t)

	if _, err := b.IndexDocuments(ctx, []*models.Document{
		{ID: "d1", Content: "shared words here", Source: "a", Category: "general"},
		{ID: "d2", Content: "shared words here", Source: "b", Category: "general"},
	}); err != nil {
		t.Fatal(err)
	}

	results, err := b.Search(ctx, "shared", models.SearchTypeText, 10, map[string]interface{}{"source": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].DocumentID != "d1" {
		t.Fatalf("filtered results = %+v, want only d1", results)
	}

	// Multiple filters are conjoined.
	results, err = b.Search(ctx, "shared", models.SearchTypeText, 10,
		map[string]interface{}{"source": "a", "category": "other"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("conjoined filters matched %d results, want 0", len(results))
	}

	if _, err := b.Search(ctx, "shared", models.SearchTypeText, 10,
		map[string]interface{}{"title": "x"}); err == nil {
		t.Error("expected error for unsupported filter field")
	}
}

func TestLocalBackend_HybridAndSemanticScores(t *testing.T) {
	ctx := context.Background()
	b, _ := newLocalForTest(t)

	if _, err := b.IndexDocuments(ctx, []*models.Document{
		{ID: "d1", Content: "machine learning"},
		{ID: "d2", Content: "deep networks"},
	}); err != nil {
		t.Fatal(err)
	}

	hybrid, err := b.Search(ctx, "machine learning", models.SearchTypeHybrid, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hybrid) != 2 {
		t.Fatalf("hybrid returned %d results, want 2", len(hybrid))
	}
	// d1's chunk has vector score ~1 and raw text score 2 (both query
	// terms occur once): 0.7*1 + 0.3*2 = 1.3.
	if hybrid[0].ID != "d1_chunk_0" {
		t.Fatalf("hybrid top = %s, want d1_chunk_0", hybrid[0].ID)
	}
	if math.Abs(hybrid[0].Score-1.3) > 1e-5 {
		t.Errorf("hybrid score = %f, want ~1.3", hybrid[0].Score)
	}

	semantic, err := b.Search(ctx, "machine learning", models.SearchTypeSemantic, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Normalized text score for the best text match is 1: 0.8*1 + 0.2*1 = 1.0.
	if semantic[0].ID != "d1_chunk_0" {
		t.Fatalf("semantic top = %s, want d1_chunk_0", semantic[0].ID)
	}
	if math.Abs(semantic[0].Score-1.0) > 1e-5 {
		t.Errorf("semantic score = %f, want ~1.0", semantic[0].Score)
	}
}

type poisonEmbedder struct {
	*embedding.MockEmbedder
	poison string
}

func (e *poisonEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.Contains(text, e.poison) {
			return nil, embedding.ErrUnavailable
		}
	}
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestLocalBackend_PartialIndexFailureIsolated(t *testing.T) {
	ctx := context.Background()
	emb := &poisonEmbedder{MockEmbedder: embedding.NewMockEmbedder(8), poison: "poison"}
	b, err := NewLocalBackend(localTestConfig(), emb, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	result, err := b.IndexDocuments(ctx, []*models.Document{
		{ID: "ok1", Content: "fine content"},
		{ID: "bad", Content: "poison content"},
		{ID: "ok2", Content: "more fine content"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.SuccessCount != 2 || result.FailedCount != 1 {
		t.Fatalf("success=%d failed=%d, want 2/1", result.SuccessCount, result.FailedCount)
	}
	if result.SuccessCount+result.FailedCount != 3 {
		t.Error("success + failed must equal input length")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "bad") {
		t.Errorf("errors = %v, want one entry naming document bad", result.Errors)
	}

	count, err := b.DocumentCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("document count = %d, want 2", count)
	}
}

func TestLocalBackend_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	b, _ := newLocalForTest(t)

	longContent := strings.Repeat("word ", 200) // forces multiple chunks
	if _, err := b.IndexDocuments(ctx, []*models.Document{
		{ID: "d1", Content: longContent},
		{ID: "d2", Content: "other"},
	}); err != nil {
		t.Fatal(err)
	}

	deleted, err := b.DeleteDocument(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Error("expected delete of existing document to return true")
	}
	count, _ := b.DocumentCount(ctx)
	if count != 1 {
		t.Errorf("document count after delete = %d, want 1", count)
	}

	deleted, err = b.DeleteDocument(ctx, "missing")
	if err != nil {
		t.Fatalf("deleting a missing document must not error: %v", err)
	}
	if deleted {
		t.Error("expected delete of missing document to return false")
	}
}

func TestLocalBackend_UnsupportedSearchType(t *testing.T) {
	b, _ := newLocalForTest(t)
	_, err := b.Search(context.Background(), "q", models.SearchType("fuzzy"), 5, nil)
	var unsupported *models.UnsupportedSearchTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("expected UnsupportedSearchTypeError, got %v", err)
	}
}

func TestLocalBackend_SearchCancelled(t *testing.T) {
	b, _ := newLocalForTest(t)
	if _, err := b.IndexDocuments(context.Background(), []*models.Document{
		{ID: "d1", Content: "some content"},
	}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Search(ctx, "content", models.SearchTypeText, 5, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLocalBackend_HealthCheck(t *testing.T) {
	b, _ := newLocalForTest(t)
	status := b.HealthCheck(context.Background())
	if status.Status != models.StatusHealthy {
		t.Errorf("status = %s, want healthy", status.Status)
	}
	if status.Approach != "custom" {
		t.Errorf("approach = %s, want custom", status.Approach)
	}

	_ = b.Close()
	status = b.HealthCheck(context.Background())
	if status.Status != models.StatusUnhealthy {
		t.Errorf("status after close = %s, want unhealthy", status.Status)
	}
	if status.Error == "" {
		t.Error("unhealthy status should carry an error message")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 4}
	if got := cosineSimilarity(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("sim(a,a) = %v, want 1", got)
	}
	if ab, ba := cosineSimilarity(a, b), cosineSimilarity(b, a); math.Abs(ab-ba) > 1e-12 {
		t.Errorf("similarity not symmetric: %v vs %v", ab, ba)
	}
	if got := cosineSimilarity(a, []float32{0, 0, 0}); got != 0 {
		t.Errorf("zero vector similarity = %v, want 0", got)
	}
	if got := cosineSimilarity(a, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched dimensions similarity = %v, want 0", got)
	}
}

func TestVectorBytesRoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3.75, 0}
	got := bytesToVector(vectorToBytes(v))
	if len(got) != len(v) {
		t.Fatalf("length %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], v[i])
		}
	}
}
