package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/chunker"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/fusion"
	"github.com/hyperjump/kensaku/internal/models"
)

// LocalBackend stores one record per chunk in SQLite and performs text and
// vector scoring itself by scanning the filtered records. No index structure
// is maintained for vectors; every query is O(n) over the matching chunks.
type LocalBackend struct {
	db       *sql.DB
	cfg      Config
	embedder embedding.Embedder
	chunker  *chunker.WordChunker
	logger   *zap.Logger
}

// NewLocalBackend opens (or creates) the chunk database at cfg.DatabasePath
// and initializes the schema. ":memory:" is supported for tests.
func NewLocalBackend(cfg Config, embedder embedding.Embedder, logger *zap.Logger) (*LocalBackend, error) {
	wc, err := chunker.NewWordChunker(cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.DatabasePath == ":memory:" {
		// In-memory databases are per-connection; keep the pool at one so
		// every query sees the same store.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initChunkSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &LocalBackend{
		db:       db,
		cfg:      cfg,
		embedder: embedder,
		chunker:  wc,
		logger:   logger,
	}, nil
}

func initChunkSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		title TEXT,
		source TEXT,
		category TEXT,
		vector BLOB NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_category ON chunks(category);
	`
	_, err := db.Exec(schema)
	return err
}

// IndexDocuments chunks, embeds, and upserts each document. A failing
// document is recorded and skipped; the remaining documents still index.
func (b *LocalBackend) IndexDocuments(ctx context.Context, docs []*models.Document) (*models.IndexResult, error) {
	result := &models.IndexResult{Approach: string(ApproachCustom), Errors: []string{}}
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

func (b *LocalBackend) indexOne(ctx context.Context, doc *models.Document) (int, error) {
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
	chunks := models.ChunksFor(doc, texts, time.Now().UTC())
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, document_id, chunk_index, content, title, source, category, vector, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, ch := range chunks {
		metadataJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.ChunkIndex, ch.Content, ch.Title, ch.Source, ch.Category,
			vectorToBytes(ch.Vector), string(metadataJSON), ch.CreatedAt,
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Search dispatches to the mode-specific scan.
func (b *LocalBackend) Search(ctx context.Context, query string, searchType models.SearchType, topK int, filters map[string]interface{}) ([]*models.SearchResult, error) {
	if err := models.ValidateFilters(filters); err != nil {
		return nil, err
	}
	switch searchType {
	case models.SearchTypeText:
		return b.textSearch(ctx, query, topK, filters)
	case models.SearchTypeVector:
		queryVec, err := b.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		return b.vectorSearch(ctx, queryVec, topK, filters)
	case models.SearchTypeSemantic:
		return b.semanticSearch(ctx, query, topK, filters)
	case models.SearchTypeHybrid:
		return b.hybridSearch(ctx, query, topK, filters)
	default:
		return nil, &models.UnsupportedSearchTypeError{SearchType: string(searchType)}
	}
}

// textSearch scans filtered chunks and scores each by summed occurrences of
// the lowercase query terms in the lowercase content. Chunks with no match
// are dropped. Ties keep store iteration order, which is stable for a quiet
// store but carries no meaning under concurrent writes.
func (b *LocalBackend) textSearch(ctx context.Context, query string, topK int, filters map[string]interface{}) ([]*models.SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	var results []*models.SearchResult
	err := b.scanChunks(ctx, filters, func(r *models.SearchResult, _ []float32) {
		content := strings.ToLower(r.Content)
		score := 0
		for _, term := range terms {
			score += strings.Count(content, term)
		}
		if score > 0 {
			r.Score = float64(score)
			results = append(results, r)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return truncate(results, topK), nil
}

// vectorSearch scans every filtered chunk and ranks by cosine similarity.
func (b *LocalBackend) vectorSearch(ctx context.Context, queryVec []float32, topK int, filters map[string]interface{}) ([]*models.SearchResult, error) {
	var results []*models.SearchResult
	err := b.scanChunks(ctx, filters, func(r *models.SearchResult, vec []float32) {
		r.Score = cosineSimilarity(queryVec, vec)
		results = append(results, r)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return truncate(results, topK), nil
}

// semanticSearch fuses vector and text sub-searches, each over 2*topK
// candidates, normalizing text scores by the max across the merged set.
func (b *LocalBackend) semanticSearch(ctx context.Context, query string, topK int, filters map[string]interface{}) ([]*models.SearchResult, error) {
	queryVec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vectorResults, err := b.vectorSearch(ctx, queryVec, topK*2, filters)
	if err != nil {
		return nil, err
	}
	textResults, err := b.textSearch(ctx, query, topK*2, filters)
	if err != nil {
		return nil, err
	}
	fused := fusion.Semantic(scoresByID(vectorResults), scoresByID(textResults), b.cfg.SemanticWeights)
	return fusedToResults(fused, topK, vectorResults, textResults), nil
}

// hybridSearch fuses vector and text sub-searches, each over topK
// candidates, blending the raw text count without normalization.
func (b *LocalBackend) hybridSearch(ctx context.Context, query string, topK int, filters map[string]interface{}) ([]*models.SearchResult, error) {
	queryVec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vectorResults, err := b.vectorSearch(ctx, queryVec, topK, filters)
	if err != nil {
		return nil, err
	}
	textResults, err := b.textSearch(ctx, query, topK, filters)
	if err != nil {
		return nil, err
	}
	fused := fusion.Hybrid(scoresByID(vectorResults), scoresByID(textResults), b.cfg.HybridWeights)
	return fusedToResults(fused, topK, vectorResults, textResults), nil
}

// scanChunks runs the filtered full scan, invoking visit for each chunk. The
// scan checks for cancellation between rows so a long scan can be bounded by
// the caller's context; on cancellation no partial results are returned.
func (b *LocalBackend) scanChunks(ctx context.Context, filters map[string]interface{}, visit func(*models.SearchResult, []float32)) error {
	where, args := filterClause(filters)
	q := `SELECT id, document_id, chunk_index, content, title, source, category, vector, metadata FROM chunks` + where
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("scan cancelled: %w", ctx.Err())
		}
		return &models.ConnectivityError{Approach: string(ApproachCustom), Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scan cancelled: %w", err)
		}
		var r models.SearchResult
		var vecBlob []byte
		var metadataJSON string
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Content, &r.Title, &r.Source, &r.Category, &vecBlob, &metadataJSON); err != nil {
			return err
		}
		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &r.Metadata); err != nil {
				return fmt.Errorf("unmarshal metadata for chunk %s: %w", r.ID, err)
			}
		}
		visit(&r, bytesToVector(vecBlob))
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("scan cancelled: %w", ctx.Err())
		}
		return err
	}
	return nil
}

// filterClause builds an equality WHERE clause for the allowed filter
// fields. Keys are sorted so the generated SQL is deterministic.
func filterClause(filters map[string]interface{}) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	conds := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		conds = append(conds, field+" = ?")
		args = append(args, filters[field])
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// DeleteDocument removes all chunks of documentID.
func (b *LocalBackend) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return false, &models.ConnectivityError{Approach: string(ApproachCustom), Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		b.logger.Info("deleted document chunks", zap.String("document_id", documentID), zap.Int64("chunks", n))
	}
	return n > 0, nil
}

// DocumentCount returns the number of distinct documents indexed.
func (b *LocalBackend) DocumentCount(ctx context.Context) (int, error) {
	var count int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT document_id) FROM chunks`).Scan(&count)
	if err != nil {
		return 0, &models.ConnectivityError{Approach: string(ApproachCustom), Err: err}
	}
	return count, nil
}

// HealthCheck pings the store and reports live counts. Failures are folded
// into the status rather than returned.
func (b *LocalBackend) HealthCheck(ctx context.Context) models.HealthStatus {
	status := models.HealthStatus{Approach: string(ApproachCustom)}
	if err := b.db.PingContext(ctx); err != nil {
		status.Status = models.StatusUnhealthy
		status.Error = err.Error()
		return status
	}
	var docs, chunks int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT document_id), COUNT(*) FROM chunks`).Scan(&docs, &chunks); err != nil {
		status.Status = models.StatusUnhealthy
		status.Error = err.Error()
		return status
	}
	status.Status = models.StatusHealthy
	status.Details = map[string]interface{}{
		"database_path":  b.cfg.DatabasePath,
		"document_count": docs,
		"chunk_count":    chunks,
	}
	return status
}

// Close closes the database.
func (b *LocalBackend) Close() error {
	return b.db.Close()
}

func scoresByID(results []*models.SearchResult) map[string]float64 {
	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.ID] = r.Score
	}
	return scores
}

// fusedToResults rebuilds SearchResults for fused scores from whichever
// sub-search produced each record.
func fusedToResults(fused []*fusion.Fused, topK int, resultSets ...[]*models.SearchResult) []*models.SearchResult {
	byID := make(map[string]*models.SearchResult)
	for _, set := range resultSets {
		for _, r := range set {
			if _, ok := byID[r.ID]; !ok {
				byID[r.ID] = r
			}
		}
	}
	out := make([]*models.SearchResult, 0, len(fused))
	for _, f := range fusion.Top(fused, topK) {
		r, ok := byID[f.ID]
		if !ok {
			continue
		}
		merged := *r
		merged.Score = f.Score
		out = append(out, &merged)
	}
	return out
}

func truncate(results []*models.SearchResult, topK int) []*models.SearchResult {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
