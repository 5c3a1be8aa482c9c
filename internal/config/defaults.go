package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Approach == "" {
		cfg.Approach = "integrated"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Processing.ChunkSize == 0 {
		cfg.Processing.ChunkSize = 1000
	}
	if cfg.Processing.ChunkOverlap == 0 {
		cfg.Processing.ChunkOverlap = 200
	}
	if cfg.Processing.EmbeddingDimension == 0 {
		cfg.Processing.EmbeddingDimension = 1536
	}
	if cfg.Processing.MaxSearchResults == 0 {
		cfg.Processing.MaxSearchResults = 10
	}
	if cfg.Processing.BatchSize == 0 {
		cfg.Processing.BatchSize = 10
	}
	if cfg.Processing.BatchWorkers == 0 {
		cfg.Processing.BatchWorkers = 4
	}
	if cfg.Search.DefaultType == "" {
		cfg.Search.DefaultType = "hybrid"
	}
	if cfg.Search.EnableSemantic == nil {
		cfg.Search.EnableSemantic = boolPtr(true)
	}
	if cfg.Search.EnableVector == nil {
		cfg.Search.EnableVector = boolPtr(true)
	}
	if cfg.Search.EnableHybrid == nil {
		cfg.Search.EnableHybrid = boolPtr(true)
	}
	if cfg.Search.EnableReranking == nil {
		cfg.Search.EnableReranking = boolPtr(true)
	}
	if cfg.Search.HybridVectorWeight == 0 {
		cfg.Search.HybridVectorWeight = 0.7
	}
	if cfg.Search.HybridTextWeight == 0 {
		cfg.Search.HybridTextWeight = 0.3
	}
	if cfg.Search.SemanticVectorWeight == 0 {
		cfg.Search.SemanticVectorWeight = 0.8
	}
	if cfg.Search.SemanticTextWeight == 0 {
		cfg.Search.SemanticTextWeight = 0.2
	}
	if cfg.Custom.DatabasePath == "" {
		cfg.Custom.DatabasePath = "/usr/local/var/kensaku/data/chunks.db"
	}
	if cfg.Integrated.IndexName == "" {
		cfg.Integrated.IndexName = "kensaku-index"
	}
	if cfg.Integrated.APIVersion == "" {
		cfg.Integrated.APIVersion = "2023-11-01"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
}

func boolPtr(b bool) *bool { return &b }
