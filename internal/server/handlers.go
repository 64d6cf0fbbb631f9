package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mikake/internal/index"
	"github.com/hyperjump/mikake/internal/models"
	"github.com/hyperjump/mikake/internal/search"
)

// maxUploadBytes caps multipart memory for query image uploads.
const maxUploadBytes = 32 << 20

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	imageBytes, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	k := 0
	if v := r.FormValue("k"); v != "" {
		k, _ = strconv.Atoi(v)
	} else if v := r.URL.Query().Get("k"); v != "" {
		k, _ = strconv.Atoi(v)
	}
	s.logger.Debug("search request", zap.String("filename", header.Filename), zap.Int("k", k))

	start := time.Now()
	results, err := s.engine.Search(r.Context(), imageBytes, k)
	if err != nil {
		switch {
		case errors.Is(err, index.ErrNotReady):
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, search.ErrBadImage):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Success:   true,
		Matches:   results,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("rebuild request")
	st, err := s.manager.Rebuild(r.Context())
	if err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.RebuildResponse{
		Success:   true,
		IndexSize: st.IndexSize,
		BuildID:   st.BuildID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.manager.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.manager.Status()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"service":    "mikake",
		"index_size": st.IndexSize,
		"products":   st.Products,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
