package models

// IndexResult aggregates the outcome of one IndexDocuments call. For an
// input of N documents, SuccessCount+FailedCount == N; per-document failure
// messages are appended to Errors in input order.
type IndexResult struct {
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	TotalChunks  int      `json:"total_chunks"`
	Approach     string   `json:"approach"`
	Errors       []string `json:"errors"`
}

// BatchResult aggregates IndexResults across batch groups. TotalProcessed
// counts every input document exactly once, so
// SuccessCount+FailedCount == TotalProcessed.
type BatchResult struct {
	SuccessCount     int      `json:"success_count"`
	FailedCount      int      `json:"failed_count"`
	TotalProcessed   int      `json:"total_processed"`
	TotalChunks      int      `json:"total_chunks"`
	BatchesProcessed int      `json:"batches_processed"`
	Approach         string   `json:"approach"`
	Errors           []string `json:"errors"`
}

// HealthStatus reports backend health. Connectivity failures during a health
// check are reported here as status "unhealthy", never returned as errors.
type HealthStatus struct {
	Status   string                 `json:"status"`
	Approach string                 `json:"approach"`
	Error    string                 `json:"error,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// PipelineInfo describes the live pipeline state. Every field is re-fetched
// on each call, never cached.
type PipelineInfo struct {
	CurrentApproach     string                 `json:"current_approach"`
	AvailableApproaches []string               `json:"available_approaches"`
	DocumentCount       int                    `json:"document_count"`
	HealthStatus        HealthStatus           `json:"health_status"`
	SearchTypes         []SearchType           `json:"search_types"`
	Settings            map[string]interface{} `json:"settings"`
}
