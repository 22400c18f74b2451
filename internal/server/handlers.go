package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/civicgo/kaiwa/internal/codec"
	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/store"
)

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.logger.Debug("predict request", zap.String("text", req.Text))
	// Respond never fails; model trouble comes back as the apology reply.
	prediction := s.engine.Respond(r.Context(), req.Text)
	s.respondJSON(w, http.StatusOK, prediction)
}

// handleTrain starts a training run and streams progress events as NDJSON,
// one event per line, flushed as they arrive. The terminal event is either
// completed or failed.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if !s.training.CompareAndSwap(false, true) {
		s.respondError(w, http.StatusConflict, "a training run is already in progress")
		return
	}
	defer s.training.Store(false)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	var failed bool
	for event := range s.trainer.Run(r.Context()) {
		if err := enc.Encode(event); err != nil {
			// Client went away; keep draining so the run finishes and the
			// bundle still gets written.
			s.logger.Warn("training progress stream broken", zap.Error(err))
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
		if event.Status == models.StatusFailed {
			failed = true
		}
	}

	if !failed {
		// The new bundle replaces whatever the engine has cached.
		if err := s.engine.LoadModel(r.Context()); err != nil {
			s.logger.Error("reload after training failed", zap.Error(err))
		}
	}
}

func (s *Server) handleModelLoad(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("model load request")
	if err := s.engine.LoadModel(r.Context()); err != nil {
		if errors.Is(err, codec.ErrBundleMissing) {
			s.respondError(w, http.StatusNotFound, "model bundle not found")
			return
		}
		s.logger.Error("model load failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	vocab, intents := s.engine.ModelInfo()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "loaded",
		"vocabulary_size": vocab,
		"intents":         intents,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	exampleCount, err := s.examples.CountExamples(ctx)
	if err != nil {
		s.logger.Error("status: count examples failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	vocab, intents := s.engine.ModelInfo()
	resp := map[string]interface{}{
		"examples":        exampleCount,
		"model_loaded":    s.engine.Loaded(),
		"vocabulary_size": vocab,
		"intents":         intents,
		"training":        s.training.Load(),
	}

	configInfo := map[string]interface{}{
		"database_path": s.config.Storage.DatabasePath,
		"bundle_path":   s.config.Storage.BundlePath,
		"max_epochs":    s.config.Training.MaxEpochs,
		"batch_size":    s.config.Training.BatchSize,
		"watch_enabled": s.config.Watch.Enabled,
	}
	diskBytes, err := store.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BundlePath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
