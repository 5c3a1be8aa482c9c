package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/chunker"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
)

const (
	vectorProfileName   = "default-vector-profile"
	hnswAlgorithmName   = "default-hnsw-algorithm"
	semanticConfigName  = "default-semantic-config"
	vectorFieldName     = "content_vector"
	deleteScanPageSize  = 1000
	distinctScanMaxPage = 100
)

// ManagedBackend persists chunks into an externally indexed schema and
// delegates text, vector, and semantic scoring to the engine. Its own work
// is limited to building the schema once, translating filters, issuing the
// four query shapes, and flattening returned records.
type ManagedBackend struct {
	client   *searchClient
	cfg      Config
	embedder embedding.Embedder
	chunker  *chunker.CharChunker
	logger   *zap.Logger

	mu           sync.Mutex
	indexEnsured bool
}

// NewManagedBackend creates the managed backend. The engine-side index is
// created lazily on first use, not here, so construction never touches the
// network.
func NewManagedBackend(cfg Config, embedder embedding.Embedder, logger *zap.Logger) (*ManagedBackend, error) {
	cc, err := chunker.NewCharChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("integrated backend requires an endpoint")
	}
	return &ManagedBackend{
		client:   newSearchClient(cfg),
		cfg:      cfg,
		embedder: embedder,
		chunker:  cc,
		logger:   logger,
	}, nil
}

// ensureIndex creates the index schema if it does not exist yet. Existence
// is an explicit check, not an exception path.
func (b *ManagedBackend) ensureIndex(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexEnsured {
		return nil
	}
	exists, err := b.client.indexExists(ctx)
	if err != nil {
		return &models.ConnectivityError{Approach: string(ApproachIntegrated), Err: err}
	}
	if !exists {
		if err := b.client.createIndex(ctx, b.schema()); err != nil {
			return &models.ConnectivityError{Approach: string(ApproachIntegrated), Err: err}
		}
		b.logger.Info("created search index", zap.String("index", b.cfg.IndexName))
	}
	b.indexEnsured = true
	return nil
}

func (b *ManagedBackend) schema() indexSchema {
	return indexSchema{
		Name: b.cfg.IndexName,
		Fields: []schemaField{
			{Name: "id", Type: "Edm.String", Key: true, Sortable: true},
			{Name: "content", Type: "Edm.String", Searchable: true, Analyzer: "standard.lucene"},
			{Name: "title", Type: "Edm.String", Searchable: true, Analyzer: "standard.lucene"},
			{Name: vectorFieldName, Type: "Collection(Edm.Single)", Searchable: true,
				Dimensions: b.cfg.Dimension, Profile: vectorProfileName},
			{Name: "document_id", Type: "Edm.String", Filterable: true, Sortable: true},
			{Name: "chunk_index", Type: "Edm.Int32", Filterable: true, Sortable: true},
			{Name: "source", Type: "Edm.String", Filterable: true, Facetable: true},
			{Name: "category", Type: "Edm.String", Filterable: true, Facetable: true},
			{Name: "created_at", Type: "Edm.DateTimeOffset", Filterable: true, Sortable: true},
			{Name: "metadata", Type: "Edm.String"},
		},
		VectorSearch: &vectorSearch{
			Algorithms: []vectorAlgorithm{{
				Name: hnswAlgorithmName,
				Kind: "hnsw",
				Parameters: hnswParameters{
					M:              4,
					EfConstruction: 400,
					EfSearch:       500,
					Metric:         "cosine",
				},
			}},
			Profiles: []vectorProfile{{Name: vectorProfileName, Algorithm: hnswAlgorithmName}},
		},
		SemanticSearch: &semanticSearch{
			Configurations: []semanticConfiguration{{
				Name: semanticConfigName,
				PrioritizedFields: semanticFieldPriorites{
					TitleField:    semanticField{FieldName: "title"},
					ContentFields: []semanticField{{FieldName: "content"}},
				},
			}},
		},
	}
}

// IndexDocuments chunks, embeds, and uploads each document as its own merge
// batch so one failing document cannot sink the others.
func (b *ManagedBackend) IndexDocuments(ctx context.Context, docs []*models.Document) (*models.IndexResult, error) {
	if err := b.ensureIndex(ctx); err != nil {
		return nil, err
	}
	result := &models.IndexResult{Approach: string(ApproachIntegrated), Errors: []string{}}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("indexing interrupted: %w", err)
		}
		n, err := b.indexOne(ctx, doc)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to index document %s: %v", doc.ID, err))
			b.logger.Error("failed to index document", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		result.SuccessCount++
		result.TotalChunks += n
		b.logger.Info("indexed document", zap.String("id", doc.ID), zap.Int("chunks", n))
	}
	return result, nil
}

func (b *ManagedBackend) indexOne(ctx context.Context, doc *models.Document) (int, error) {
	var texts []string
	if len(doc.Content) > b.cfg.ChunkSize {
		texts = b.chunker.Chunk(doc.Content)
	} else {
		texts = []string{doc.Content}
	}
	if len(texts) == 0 {
		texts = []string{doc.Content}
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	actions := make([]indexAction, len(texts))
	for i, text := range texts {
		actions[i] = indexAction{
			"@search.action": "mergeOrUpload",
			"id":             models.ChunkID(doc.ID, i),
			"content":        text,
			"title":          doc.Title,
			vectorFieldName:  vectors[i],
			"document_id":    doc.ID,
			"chunk_index":    i,
			"source":         doc.Source,
			"category":       doc.Category,
			"created_at":     now,
			"metadata":       string(metadataJSON),
		}
	}
	resp, err := b.client.indexBatch(ctx, actions)
	if err != nil {
		return 0, err
	}
	for _, r := range resp.Value {
		if !r.Status {
			return 0, fmt.Errorf("engine rejected chunk %s: %s", r.Key, r.ErrorMessage)
		}
	}
	return len(texts), nil
}

// Search issues one of the four query shapes and flattens the hits.
func (b *ManagedBackend) Search(ctx context.Context, query string, searchType models.SearchType, topK int, filters map[string]interface{}) ([]*models.SearchResult, error) {
	if err := models.ValidateFilters(filters); err != nil {
		return nil, err
	}
	if err := b.ensureIndex(ctx); err != nil {
		return nil, err
	}

	q := searchQuery{Top: topK, Filter: filterExpression(filters)}
	switch searchType {
	case models.SearchTypeText:
		q.Search = query
	case models.SearchTypeVector:
		vec, err := b.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		q.VectorQueries = []vectorQuery{{Kind: "vector", Vector: vec, K: topK, Fields: vectorFieldName}}
	case models.SearchTypeSemantic:
		q.Search = query
		q.QueryType = "semantic"
		q.SemanticConfiguration = semanticConfigName
	case models.SearchTypeHybrid:
		vec, err := b.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		q.Search = query
		q.VectorQueries = []vectorQuery{{Kind: "vector", Vector: vec, K: topK, Fields: vectorFieldName}}
		if b.cfg.EnableSemantic {
			q.QueryType = "semantic"
			q.SemanticConfiguration = semanticConfigName
		}
	default:
		return nil, &models.UnsupportedSearchTypeError{SearchType: string(searchType)}
	}

	hits, err := b.client.search(ctx, q)
	if err != nil {
		return nil, &models.ConnectivityError{Approach: string(ApproachIntegrated), Err: err}
	}
	results := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, flattenHit(hit))
	}
	return results, nil
}

// flattenHit converts an engine record into the common result shape. The
// metadata field round-trips as a JSON string.
func flattenHit(hit searchHit) *models.SearchResult {
	r := &models.SearchResult{
		ID:         hit.str("id"),
		Content:    hit.str("content"),
		Title:      hit.str("title"),
		DocumentID: hit.str("document_id"),
		ChunkIndex: int(hit.num("chunk_index")),
		Source:     hit.str("source"),
		Category:   hit.str("category"),
		Score:      hit.num("@search.score"),
	}
	if raw := hit.str("metadata"); raw != "" && raw != "null" {
		_ = json.Unmarshal([]byte(raw), &r.Metadata)
	}
	return r
}

// filterExpression renders filters as an equality conjunction in the
// engine's expression syntax: strings quoted, other values verbatim. Ranges,
// negation, and OR are not supported.
func filterExpression(filters map[string]interface{}) string {
	if len(filters) == 0 {
		return ""
	}
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		switch v := filters[field].(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(v, "'", "''")))
		case float64:
			if v == float64(int64(v)) {
				parts = append(parts, fmt.Sprintf("%s eq %d", field, int64(v)))
			} else {
				parts = append(parts, fmt.Sprintf("%s eq %v", field, v))
			}
		default:
			parts = append(parts, fmt.Sprintf("%s eq %v", field, v))
		}
	}
	return strings.Join(parts, " and ")
}

// DeleteDocument collects the ids of every chunk with the given document_id
// and bulk-deletes them. Returns true iff the engine confirmed at least one
// deletion.
func (b *ManagedBackend) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	if err := b.ensureIndex(ctx); err != nil {
		return false, err
	}
	deleted := 0
	for {
		hits, err := b.client.search(ctx, searchQuery{
			Search: "*",
			Filter: filterExpression(map[string]interface{}{"document_id": documentID}),
			Select: "id",
			Top:    deleteScanPageSize,
		})
		if err != nil {
			return false, &models.ConnectivityError{Approach: string(ApproachIntegrated), Err: err}
		}
		if len(hits) == 0 {
			break
		}
		actions := make([]indexAction, 0, len(hits))
		for _, hit := range hits {
			actions = append(actions, indexAction{"@search.action": "delete", "id": hit.str("id")})
		}
		resp, err := b.client.indexBatch(ctx, actions)
		if err != nil {
			return false, &models.ConnectivityError{Approach: string(ApproachIntegrated), Err: err}
		}
		passDeleted := 0
		for _, r := range resp.Value {
			if r.Status {
				passDeleted++
			}
		}
		deleted += passDeleted
		// A pass the engine confirmed nothing from would rescan the same
		// ids forever.
		if passDeleted == 0 || len(hits) < deleteScanPageSize {
			break
		}
	}
	if deleted > 0 {
		b.logger.Info("deleted document chunks", zap.String("document_id", documentID), zap.Int("chunks", deleted))
	}
	return deleted > 0, nil
}

// DocumentCount scans chunk document_ids in pages and counts distinct values.
func (b *ManagedBackend) DocumentCount(ctx context.Context) (int, error) {
	if err := b.ensureIndex(ctx); err != nil {
		return 0, err
	}
	seen := make(map[string]bool)
	for page := 0; page < distinctScanMaxPage; page++ {
		hits, err := b.client.search(ctx, searchQuery{
			Search: "*",
			Select: "document_id",
			Top:    deleteScanPageSize,
			Skip:   page * deleteScanPageSize,
		})
		if err != nil {
			return 0, &models.ConnectivityError{Approach: string(ApproachIntegrated), Err: err}
		}
		for _, hit := range hits {
			seen[hit.str("document_id")] = true
		}
		if len(hits) < deleteScanPageSize {
			break
		}
	}
	return len(seen), nil
}

// HealthCheck queries index stats; a failure becomes an unhealthy status.
func (b *ManagedBackend) HealthCheck(ctx context.Context) models.HealthStatus {
	status := models.HealthStatus{Approach: string(ApproachIntegrated)}
	stats, err := b.client.stats(ctx)
	if err != nil {
		status.Status = models.StatusUnhealthy
		status.Error = err.Error()
		return status
	}
	status.Status = models.StatusHealthy
	status.Details = map[string]interface{}{
		"index_name":   b.cfg.IndexName,
		"record_count": stats.DocumentCount,
		"storage_size": stats.StorageSize,
	}
	return status
}

// Close is a no-op; the engine connection is stateless HTTP.
func (b *ManagedBackend) Close() error { return nil }
