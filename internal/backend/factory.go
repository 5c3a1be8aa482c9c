package backend

import (
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"go.uber.org/zap"
)

// New creates a backend for cfg.Approach. The approach is taken from the
// passed Config value, never from shared mutable state; callers that want a
// different approach build a new Config.
func New(cfg Config, embedder embedding.Embedder, logger *zap.Logger) (Backend, error) {
	switch cfg.Approach {
	case ApproachCustom:
		return NewLocalBackend(cfg, embedder, logger)
	case ApproachIntegrated:
		return NewManagedBackend(cfg, embedder, logger)
	default:
		return nil, &models.UnsupportedApproachError{Approach: string(cfg.Approach)}
	}
}

// Approaches lists the supported vectorization approaches.
func Approaches() []string {
	return []string{string(ApproachCustom), string(ApproachIntegrated)}
}

// ValidateApproach reports whether approach names a supported variant.
func ValidateApproach(approach string) bool {
	switch Approach(approach) {
	case ApproachCustom, ApproachIntegrated:
		return true
	default:
		return false
	}
}
