package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
)

type batchJob struct {
	idx  int
	docs []*models.Document
}

// ProcessDocumentsBatch indexes documents in groups of batchSize using a
// bounded pool of workers. A failing group counts all of its documents as
// failed and contributes one aggregate error; the other groups are
// unaffected. The active backend is pinned for the whole run, so an
// approach switch waits until the batch drains.
func (p *Pipeline) ProcessDocumentsBatch(ctx context.Context, docs []*models.Document, batchSize int) (*models.BatchResult, error) {
	if batchSize < 1 {
		batchSize = p.cfg.Processing.BatchSize
	}
	workers := p.cfg.Processing.BatchWorkers
	if workers < 1 {
		workers = 1
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	b, approach := p.backend, p.approach

	result := &models.BatchResult{
		TotalProcessed: len(docs),
		Approach:       string(approach),
		Errors:         []string{},
	}
	if len(docs) == 0 {
		return result, nil
	}

	groups := partition(docs, batchSize)
	runID := uuid.New().String()
	p.logger.Info("starting batch run",
		zap.String("run_id", runID),
		zap.Int("documents", len(docs)),
		zap.Int("batches", len(groups)),
		zap.Int("workers", workers))

	var (
		wg           sync.WaitGroup
		jobs         = make(chan batchJob)
		groupResults = make([]*models.IndexResult, len(groups))
		groupErrs    = make([]error, len(groups))
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res, err := indexThrough(ctx, b, approach, job.docs)
				groupResults[job.idx] = res
				groupErrs[job.idx] = err
			}
		}()
	}
	for i, group := range groups {
		jobs <- batchJob{idx: i, docs: group}
	}
	close(jobs)
	wg.Wait()

	for i, group := range groups {
		result.BatchesProcessed++
		if err := groupErrs[i]; err != nil {
			result.FailedCount += len(group)
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d failed: %v", i, err))
			p.logger.Error("batch group failed",
				zap.String("run_id", runID), zap.Int("batch", i), zap.Error(err))
			continue
		}
		res := groupResults[i]
		result.SuccessCount += res.SuccessCount
		result.FailedCount += res.FailedCount
		result.TotalChunks += res.TotalChunks
		result.Errors = append(result.Errors, res.Errors...)
	}

	p.logger.Info("batch run finished",
		zap.String("run_id", runID),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("chunks", result.TotalChunks))
	return result, nil
}

// partition splits docs into groups of at most size documents, preserving
// input order.
func partition(docs []*models.Document, size int) [][]*models.Document {
	groups := make([][]*models.Document, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		groups = append(groups, docs[start:end])
	}
	return groups
}
