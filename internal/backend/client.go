package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// searchClient is a minimal REST client for the managed search engine.
// Requests carry the engine API version as a query parameter and the API key
// in the api-key header.
type searchClient struct {
	endpoint   string
	apiKey     string
	indexName  string
	apiVersion string
	httpClient *http.Client
}

func newSearchClient(cfg Config) *searchClient {
	return &searchClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		indexName:  cfg.IndexName,
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// indexSchema describes the engine-side index: plain fields, a vector field
// with an HNSW cosine profile, and a default semantic configuration.
type indexSchema struct {
	Name           string          `json:"name"`
	Fields         []schemaField   `json:"fields"`
	VectorSearch   *vectorSearch   `json:"vectorSearch,omitempty"`
	SemanticSearch *semanticSearch `json:"semantic,omitempty"`
}

type schemaField struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Key        bool   `json:"key,omitempty"`
	Searchable bool   `json:"searchable,omitempty"`
	Filterable bool   `json:"filterable,omitempty"`
	Sortable   bool   `json:"sortable,omitempty"`
	Facetable  bool   `json:"facetable,omitempty"`
	Analyzer   string `json:"analyzer,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	Profile    string `json:"vectorSearchProfile,omitempty"`
}

type vectorSearch struct {
	Algorithms []vectorAlgorithm `json:"algorithms"`
	Profiles   []vectorProfile   `json:"profiles"`
}

type vectorAlgorithm struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Parameters hnswParameters `json:"hnswParameters"`
}

type hnswParameters struct {
	M              int    `json:"m"`
	EfConstruction int    `json:"efConstruction"`
	EfSearch       int    `json:"efSearch"`
	Metric         string `json:"metric"`
}

type vectorProfile struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
}

type semanticSearch struct {
	Configurations []semanticConfiguration `json:"configurations"`
}

type semanticConfiguration struct {
	Name              string                 `json:"name"`
	PrioritizedFields semanticFieldPriorites `json:"prioritizedFields"`
}

type semanticFieldPriorites struct {
	TitleField    semanticField   `json:"titleField"`
	ContentFields []semanticField `json:"prioritizedContentFields"`
}

type semanticField struct {
	FieldName string `json:"fieldName"`
}

// searchQuery is the body of a docs/search call. At most one of the four
// query shapes is expressed: text, vector-only, semantic, or hybrid.
type searchQuery struct {
	Search                string        `json:"search,omitempty"`
	Filter                string        `json:"filter,omitempty"`
	Select                string        `json:"select,omitempty"`
	Top                   int           `json:"top,omitempty"`
	Skip                  int           `json:"skip,omitempty"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	VectorQueries         []vectorQuery `json:"vectorQueries,omitempty"`
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
	Fields string    `json:"fields"`
}

// searchHit is one returned record; engine metadata keys start with "@search.".
type searchHit map[string]interface{}

func (h searchHit) str(key string) string {
	s, _ := h[key].(string)
	return s
}

func (h searchHit) num(key string) float64 {
	n, _ := h[key].(float64)
	return n
}

type searchResponse struct {
	Value []searchHit `json:"value"`
}

// indexAction is one document action in a docs/index batch.
type indexAction map[string]interface{}

type indexBatchResponse struct {
	Value []struct {
		Key          string `json:"key"`
		Status       bool   `json:"status"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"value"`
}

type indexStats struct {
	DocumentCount int64 `json:"documentCount"`
	StorageSize   int64 `json:"storageSize"`
}

func (c *searchClient) url(path string) string {
	return fmt.Sprintf("%s%s?api-version=%s", c.endpoint, path, url.QueryEscape(c.apiVersion))
}

// indexExists reports whether the index is present. A 404 is the normal
// negative answer, not an error.
func (c *searchClient) indexExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/indexes/"+c.indexName), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	defer drain(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 300:
		return true, nil
	default:
		return false, fmt.Errorf("check index: %s", resp.Status)
	}
}

func (c *searchClient) createIndex(ctx context.Context, schema indexSchema) error {
	body, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal index schema: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url("/indexes/"+c.indexName), bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("create index: %s: %s", resp.Status, readBody(resp))
	}
	return nil
}

func (c *searchClient) indexBatch(ctx context.Context, actions []indexAction) (*indexBatchResponse, error) {
	body, err := json.Marshal(map[string]interface{}{"value": actions})
	if err != nil {
		return nil, fmt.Errorf("marshal index batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/indexes/"+c.indexName+"/docs/index"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("index batch: %s: %s", resp.Status, readBody(resp))
	}
	var out indexBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode index batch response: %w", err)
	}
	return &out, nil
}

func (c *searchClient) search(ctx context.Context, query searchQuery) ([]searchHit, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/indexes/"+c.indexName+"/docs/search"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search: %s: %s", resp.Status, readBody(resp))
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Value, nil
}

func (c *searchClient) stats(ctx context.Context) (*indexStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/indexes/"+c.indexName+"/stats"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("index stats: %s", resp.Status)
	}
	var out indexStats
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode stats response: %w", err)
	}
	return &out, nil
}

func (c *searchClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	return c.httpClient.Do(req)
}

func readBody(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return string(data)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
