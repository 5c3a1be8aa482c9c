// Package pipeline orchestrates document ingestion and retrieval over a
// switchable backend. It owns request validation and defaulting; scoring and
// persistence belong to the active backend.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/fusion"
	"github.com/hyperjump/kensaku/internal/models"
)

// Pipeline routes all document and search operations through the currently
// active backend. The backend can be swapped at runtime; in-flight
// operations hold a read lock so a switch waits for them to drain.
type Pipeline struct {
	cfg      *config.Config
	embedder embedding.Embedder
	logger   *zap.Logger

	mu       sync.RWMutex
	approach backend.Approach
	backend  backend.Backend
}

// New builds a pipeline with the backend named by cfg.Approach.
func New(cfg *config.Config, embedder embedding.Embedder, logger *zap.Logger) (*Pipeline, error) {
	approach := backend.Approach(cfg.Approach)
	b, err := backend.New(backendConfig(cfg, approach), embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Approach, err)
	}
	return &Pipeline{
		cfg:      cfg,
		embedder: embedder,
		logger:   logger,
		approach: approach,
		backend:  b,
	}, nil
}

// backendConfig snapshots the parts of cfg one backend instance needs.
func backendConfig(cfg *config.Config, approach backend.Approach) backend.Config {
	return backend.Config{
		Approach:     approach,
		DatabasePath: cfg.Custom.DatabasePath,
		Endpoint:     cfg.Integrated.Endpoint,
		APIKey:       cfg.Integrated.APIKey,
		IndexName:    cfg.Integrated.IndexName,
		APIVersion:   cfg.Integrated.APIVersion,
		Dimension:    cfg.Processing.EmbeddingDimension,
		ChunkSize:    cfg.Processing.ChunkSize,
		ChunkOverlap: cfg.Processing.ChunkOverlap,
		HybridWeights: fusion.Weights{
			Vector: cfg.Search.HybridVectorWeight,
			Text:   cfg.Search.HybridTextWeight,
		},
		SemanticWeights: fusion.Weights{
			Vector: cfg.Search.SemanticVectorWeight,
			Text:   cfg.Search.SemanticTextWeight,
		},
		EnableSemantic: cfg.Search.EnableSemantic != nil && *cfg.Search.EnableSemantic,
	}
}

// validateDocument checks required fields and fills optional ones in place.
func validateDocument(doc *models.Document) error {
	if doc == nil {
		return &models.ValidationError{Field: "document", Reason: "missing"}
	}
	if doc.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "required"}
	}
	if strings.TrimSpace(doc.Content) == "" {
		return &models.ValidationError{DocumentID: doc.ID, Field: "content", Reason: "required"}
	}
	if doc.Title == "" {
		doc.Title = "Document " + doc.ID
	}
	if doc.Source == "" {
		doc.Source = "unknown"
	}
	if doc.Category == "" {
		doc.Category = "general"
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]interface{}{}
	}
	return nil
}

// ProcessDocuments validates, then indexes the valid documents through the
// active backend. Invalid documents are counted as failures alongside the
// backend's own per-document failures; they never abort the call.
func (p *Pipeline) ProcessDocuments(ctx context.Context, docs []*models.Document) (*models.IndexResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return indexThrough(ctx, p.backend, p.approach, docs)
}

func indexThrough(ctx context.Context, b backend.Backend, approach backend.Approach, docs []*models.Document) (*models.IndexResult, error) {
	result := &models.IndexResult{Approach: string(approach), Errors: []string{}}
	valid := make([]*models.Document, 0, len(docs))
	for _, doc := range docs {
		if err := validateDocument(doc); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		valid = append(valid, doc)
	}
	if len(valid) == 0 {
		return result, nil
	}
	indexed, err := b.IndexDocuments(ctx, valid)
	if err != nil {
		return nil, err
	}
	result.SuccessCount = indexed.SuccessCount
	result.FailedCount += indexed.FailedCount
	result.TotalChunks = indexed.TotalChunks
	result.Errors = append(result.Errors, indexed.Errors...)
	return result, nil
}

// SearchDocuments resolves defaults for the request and queries the active
// backend. An unknown search type fails before any backend work.
func (p *Pipeline) SearchDocuments(ctx context.Context, req models.SearchRequest) ([]*models.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, &models.ValidationError{Field: "query", Reason: "required"}
	}
	typeName := req.SearchType
	if typeName == "" {
		typeName = p.cfg.Search.DefaultType
	}
	searchType, err := models.ParseSearchType(typeName)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateFilters(req.Filters); err != nil {
		return nil, err
	}
	topK := req.TopK
	if topK < 1 {
		topK = models.DefaultTopK
	}
	if max := p.cfg.Processing.MaxSearchResults; max > 0 && topK > max {
		topK = max
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	results, err := p.backend.Search(ctx, req.Query, searchType, topK, req.Filters)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("search completed",
		zap.String("search_type", string(searchType)),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)))
	return results, nil
}

// DeleteDocument removes every chunk of the document. A missing document is
// a normal false result.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	if documentID == "" {
		return false, &models.ValidationError{Field: "document_id", Reason: "required"}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backend.DeleteDocument(ctx, documentID)
}

// DocumentCount returns the number of distinct documents indexed by the
// active backend.
func (p *Pipeline) DocumentCount(ctx context.Context) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backend.DocumentCount(ctx)
}

// HealthCheck reports the active backend's health. It never returns an
// error; failures surface in the status.
func (p *Pipeline) HealthCheck(ctx context.Context) models.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backend.HealthCheck(ctx)
}

// Approach returns the name of the active backend.
func (p *Pipeline) Approach() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return string(p.approach)
}

// SwitchApproach swaps the active backend at runtime. It returns false when
// the approach is unknown or the new backend cannot be built; the old
// backend stays active in the false case.
func (p *Pipeline) SwitchApproach(approach string) bool {
	if !backend.ValidateApproach(approach) {
		p.logger.Warn("rejected unknown approach", zap.String("approach", approach))
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if backend.Approach(approach) == p.approach {
		return true
	}

	next, err := backend.New(backendConfig(p.cfg, backend.Approach(approach)), p.embedder, p.logger)
	if err != nil {
		p.logger.Error("failed to switch approach, keeping current backend",
			zap.String("approach", approach), zap.Error(err))
		return false
	}
	if err := p.backend.Close(); err != nil {
		p.logger.Warn("failed to close previous backend", zap.Error(err))
	}
	p.logger.Info("switched approach",
		zap.String("from", string(p.approach)), zap.String("to", approach))
	p.approach = backend.Approach(approach)
	p.backend = next
	return true
}

// Info gathers live pipeline state. Nothing here is cached; the document
// count and health status are fetched fresh on every call.
func (p *Pipeline) Info(ctx context.Context) *models.PipelineInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, approach := p.backend, p.approach

	count, err := b.DocumentCount(ctx)
	if err != nil {
		p.logger.Warn("failed to count documents", zap.Error(err))
		count = 0
	}
	return &models.PipelineInfo{
		CurrentApproach:     string(approach),
		AvailableApproaches: backend.Approaches(),
		DocumentCount:       count,
		HealthStatus:        b.HealthCheck(ctx),
		SearchTypes:         models.SearchTypes(),
		Settings: map[string]interface{}{
			"chunk_size":          p.cfg.Processing.ChunkSize,
			"chunk_overlap":       p.cfg.Processing.ChunkOverlap,
			"embedding_dimension": p.cfg.Processing.EmbeddingDimension,
			"max_search_results":  p.cfg.Processing.MaxSearchResults,
			"batch_size":          p.cfg.Processing.BatchSize,
			"batch_workers":       p.cfg.Processing.BatchWorkers,
			"default_search_type": p.cfg.Search.DefaultType,
		},
	}
}

// Close releases the active backend.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backend.Close()
}
