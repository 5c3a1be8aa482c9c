// Package config provides configuration loading and structs for the kensaku server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Approach   string           `yaml:"approach"`
	Server     ServerConfig     `yaml:"server"`
	Processing ProcessingConfig `yaml:"processing"`
	Search     SearchConfig     `yaml:"search"`
	Custom     CustomConfig     `yaml:"custom"`
	Integrated IntegratedConfig `yaml:"integrated"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProcessingConfig holds chunking, embedding, and batch settings.
type ProcessingConfig struct {
	ChunkSize          int `yaml:"chunk_size"`
	ChunkOverlap       int `yaml:"chunk_overlap"`
	EmbeddingDimension int `yaml:"embedding_dimension"`
	MaxSearchResults   int `yaml:"max_search_results"`
	BatchSize          int `yaml:"batch_size"`
	BatchWorkers       int `yaml:"batch_workers"`
}

// SearchConfig holds search mode flags and fusion weights.
type SearchConfig struct {
	DefaultType          string  `yaml:"default_type"`
	EnableSemantic       *bool   `yaml:"enable_semantic"`
	EnableVector         *bool   `yaml:"enable_vector"`
	EnableHybrid         *bool   `yaml:"enable_hybrid"`
	EnableReranking      *bool   `yaml:"enable_reranking"`
	HybridVectorWeight   float64 `yaml:"hybrid_vector_weight"`
	HybridTextWeight     float64 `yaml:"hybrid_text_weight"`
	SemanticVectorWeight float64 `yaml:"semantic_vector_weight"`
	SemanticTextWeight   float64 `yaml:"semantic_text_weight"`
}

// CustomConfig holds settings for the custom (local metadata store) backend.
type CustomConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// IntegratedConfig holds settings for the integrated (managed search engine) backend.
type IntegratedConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	APIKeyEnv  string `yaml:"api_key_env"`
	IndexName  string `yaml:"index_name"`
	APIVersion string `yaml:"api_version"`
}

// EmbeddingConfig holds the external embedding provider settings.
type EmbeddingConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Custom.DatabasePath = expandPath(cfg.Custom.DatabasePath, configDir)

	if cfg.Integrated.APIKey == "" && cfg.Integrated.APIKeyEnv != "" {
		cfg.Integrated.APIKey = os.Getenv(cfg.Integrated.APIKeyEnv)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration invariants. A chunk overlap equal to or
// larger than the chunk size would stall the character-window chunker, so
// it is rejected here rather than clamped.
func Validate(cfg *Config) error {
	if cfg.Approach != "custom" && cfg.Approach != "integrated" {
		return fmt.Errorf("approach must be \"custom\" or \"integrated\", got %q", cfg.Approach)
	}
	if cfg.Processing.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1, got %d", cfg.Processing.ChunkSize)
	}
	if cfg.Processing.ChunkOverlap < 0 || cfg.Processing.ChunkOverlap >= cfg.Processing.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be in [0, chunk_size), chunk_size is %d",
			cfg.Processing.ChunkOverlap, cfg.Processing.ChunkSize)
	}
	if cfg.Processing.EmbeddingDimension < 1 {
		return fmt.Errorf("embedding_dimension must be at least 1, got %d", cfg.Processing.EmbeddingDimension)
	}
	switch cfg.Search.DefaultType {
	case "text", "vector", "semantic", "hybrid":
	default:
		return fmt.Errorf("search default_type %q is not one of text, vector, semantic, hybrid", cfg.Search.DefaultType)
	}
	return nil
}

// expandPath converts a path to absolute. "~/" expands to the home
// directory; every other relative path is resolved against the directory of
// the config file. The sqlite ":memory:" name passes through untouched.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
