package models

// SearchType selects the ranking signal used by a search.
type SearchType string

const (
	SearchTypeText     SearchType = "text"
	SearchTypeVector   SearchType = "vector"
	SearchTypeSemantic SearchType = "semantic"
	SearchTypeHybrid   SearchType = "hybrid"
)

// DefaultTopK is the number of results a search returns when the request
// does not ask for a specific count.
const DefaultTopK = 5

// SearchTypes lists all supported search types.
func SearchTypes() []SearchType {
	return []SearchType{SearchTypeText, SearchTypeVector, SearchTypeSemantic, SearchTypeHybrid}
}

// ParseSearchType validates a caller-supplied search type string.
func ParseSearchType(s string) (SearchType, error) {
	switch SearchType(s) {
	case SearchTypeText, SearchTypeVector, SearchTypeSemantic, SearchTypeHybrid:
		return SearchType(s), nil
	default:
		return "", &UnsupportedSearchTypeError{SearchType: s}
	}
}

// FilterFields are the indexed metadata fields that search filters may
// reference. Multiple filter entries are conjoined (AND); only equality
// matching is supported.
var FilterFields = map[string]bool{
	"document_id": true,
	"source":      true,
	"category":    true,
	"chunk_index": true,
}

// SearchRequest is a search call against the active backend.
type SearchRequest struct {
	Query      string                 `json:"query"`
	SearchType string                 `json:"search_type,omitempty"`
	TopK       int                    `json:"top_k,omitempty"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
}

// SearchResult is a single scored chunk hit. Score semantics depend on the
// search type: cosine similarity in [-1,1] for vector, term-frequency count
// for text, and a weighted blend for semantic and hybrid.
type SearchResult struct {
	ID         string                 `json:"id"`
	Content    string                 `json:"content"`
	Title      string                 `json:"title"`
	DocumentID string                 `json:"document_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Source     string                 `json:"source"`
	Category   string                 `json:"category"`
	Score      float64                `json:"score"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ValidateFilters rejects filters that reference fields outside FilterFields.
func ValidateFilters(filters map[string]interface{}) error {
	for field := range filters {
		if !FilterFields[field] {
			return &ValidationError{Field: field, Reason: "unsupported filter field"}
		}
	}
	return nil
}
