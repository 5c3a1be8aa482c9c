package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

type indexRequest struct {
	Documents []*models.Document `json:"documents"`
}

type batchIndexRequest struct {
	Documents []*models.Document `json:"documents"`
	BatchSize int                `json:"batch_size,omitempty"`
}

type approachRequest struct {
	Approach string `json:"approach"`
}

func (s *Server) handleIndexDocuments(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		s.respondError(w, http.StatusBadRequest, "documents are required")
		return
	}
	s.logger.Debug("index request", zap.Int("documents", len(req.Documents)))
	result, err := s.pipeline.ProcessDocuments(r.Context(), req.Documents)
	if err != nil {
		s.respondPipelineError(w, "indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleIndexDocumentsBatch(w http.ResponseWriter, r *http.Request) {
	var req batchIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		s.respondError(w, http.StatusBadRequest, "documents are required")
		return
	}
	s.logger.Debug("batch index request",
		zap.Int("documents", len(req.Documents)), zap.Int("batch_size", req.BatchSize))
	result, err := s.pipeline.ProcessDocumentsBatch(r.Context(), req.Documents, req.BatchSize)
	if err != nil {
		s.respondPipelineError(w, "batch indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	deleted, err := s.pipeline.DeleteDocument(r.Context(), id)
	if err != nil {
		s.respondPipelineError(w, "deletion failed", err)
		return
	}
	status := http.StatusOK
	if !deleted {
		status = http.StatusNotFound
	}
	s.respondJSON(w, status, map[string]interface{}{"document_id": id, "deleted": deleted})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", utils.Truncate(req.Query, 120)), zap.String("search_type", req.SearchType))
	results, err := s.pipeline.SearchDocuments(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleSwitchApproach(w http.ResponseWriter, r *http.Request) {
	var req approachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.pipeline.SwitchApproach(req.Approach) {
		s.respondError(w, http.StatusBadRequest, "failed to switch to approach "+req.Approach)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"approach": s.pipeline.Approach()})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.pipeline.Info(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.pipeline.HealthCheck(r.Context())
	code := http.StatusOK
	if status.Status != models.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	s.respondJSON(w, code, status)
}

// respondPipelineError maps pipeline errors onto HTTP statuses: caller
// mistakes are 400, unreachable stores are 502, everything else is 500.
func (s *Server) respondPipelineError(w http.ResponseWriter, msg string, err error) {
	var (
		validation   *models.ValidationError
		badType      *models.UnsupportedSearchTypeError
		badApproach  *models.UnsupportedApproachError
		connectivity *models.ConnectivityError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &badType), errors.As(err, &badApproach):
		s.logger.Debug(msg, zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &connectivity):
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
