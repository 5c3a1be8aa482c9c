// Package e2e exercises the full HTTP API over a real pipeline.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/pipeline"
	"github.com/hyperjump/kensaku/internal/server"
)

var corpus = []*models.Document{
	{ID: "go-intro", Title: "Go Introduction", Content: "Go is a statically typed compiled language designed for simplicity.", Category: "programming"},
	{ID: "ml-basics", Title: "ML Basics", Content: "Machine learning models learn patterns from labeled training data.", Category: "ml"},
	{ID: "search-notes", Title: "Search Notes", Content: "Hybrid search combines vector similarity with keyword matching.", Category: "ml"},
}

func startAPI(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Approach: "custom",
		Custom:   config.CustomConfig{DatabasePath: filepath.Join(t.TempDir(), "chunks.db")},
		Processing: config.ProcessingConfig{
			ChunkSize:          200,
			ChunkOverlap:       20,
			EmbeddingDimension: 8,
			MaxSearchResults:   10,
			BatchSize:          10,
			BatchWorkers:       2,
		},
		Search: config.SearchConfig{DefaultType: "hybrid"},
	}
	config.ApplyDefaults(cfg)

	p, err := pipeline.New(cfg, embedding.NewMockEmbedder(8), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close() })

	srv := httptest.NewServer(server.NewServer(p, &cfg.Server, zap.NewNop()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	api := startAPI(t)

	var indexed models.IndexResult
	code := postJSON(t, api.URL+"/api/v1/documents",
		map[string]interface{}{"documents": corpus}, &indexed)
	if code != http.StatusCreated {
		t.Fatalf("index status = %d", code)
	}
	if indexed.SuccessCount != len(corpus) || indexed.FailedCount != 0 {
		t.Fatalf("index result: %+v", indexed)
	}

	for _, searchType := range []string{"text", "vector", "semantic", "hybrid"} {
		var out struct {
			Results []*models.SearchResult `json:"results"`
			Count   int                    `json:"count"`
		}
		code := postJSON(t, api.URL+"/api/v1/search", models.SearchRequest{
			Query:      "machine learning",
			SearchType: searchType,
		}, &out)
		if code != http.StatusOK {
			t.Fatalf("search %q status = %d", searchType, code)
		}
		if out.Count < 1 {
			t.Errorf("search %q returned no results", searchType)
		}
	}

	// Category filter narrows results to the ml documents.
	var filtered struct {
		Results []*models.SearchResult `json:"results"`
	}
	code = postJSON(t, api.URL+"/api/v1/search", models.SearchRequest{
		Query:      "learning",
		SearchType: "text",
		Filters:    map[string]interface{}{"category": "ml"},
	}, &filtered)
	if code != http.StatusOK {
		t.Fatalf("filtered search status = %d", code)
	}
	for _, r := range filtered.Results {
		if r.Category != "ml" {
			t.Errorf("filter leaked category %q", r.Category)
		}
	}

	req, _ := http.NewRequest(http.MethodDelete, api.URL+"/api/v1/documents/go-intro", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	infoResp, err := http.Get(api.URL + "/api/v1/info")
	if err != nil {
		t.Fatal(err)
	}
	defer infoResp.Body.Close()
	var info models.PipelineInfo
	if err := json.NewDecoder(infoResp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.DocumentCount != len(corpus)-1 {
		t.Fatalf("document count = %d, want %d", info.DocumentCount, len(corpus)-1)
	}
	if info.HealthStatus.Status != models.StatusHealthy {
		t.Fatalf("health: %+v", info.HealthStatus)
	}
}

func TestE2E_BatchIndexing(t *testing.T) {
	api := startAPI(t)

	docs := make([]*models.Document, 0, 23)
	for i := 0; i < 23; i++ {
		docs = append(docs, &models.Document{
			ID:      fmt.Sprintf("doc-%02d", i),
			Content: fmt.Sprintf("document body %d", i),
		})
	}

	var result models.BatchResult
	code := postJSON(t, api.URL+"/api/v1/documents/batch",
		map[string]interface{}{"documents": docs, "batch_size": 10}, &result)
	if code != http.StatusCreated {
		t.Fatalf("batch status = %d", code)
	}
	if result.TotalProcessed != 23 || result.BatchesProcessed != 3 {
		t.Fatalf("batch result: %+v", result)
	}
	if result.SuccessCount+result.FailedCount != result.TotalProcessed {
		t.Fatal("success+failed must equal total processed")
	}

	healthResp, err := http.Get(api.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer healthResp.Body.Close()
	if healthResp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", healthResp.StatusCode)
	}
}
