package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/mpatwa/resolute/pkg/domain"
	"github.com/mpatwa/resolute/pkg/store"
)

// --- Threads ---

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.threads.ListThreads(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, threads)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	th := domain.Thread{ID: uuid.New().String()}
	if err := s.threads.CreateThread(r.Context(), &th); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, th)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.engine.GetState(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.errorResponse(w, status, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.threads.DeleteThread(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.errorResponse(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Turn invocation ---

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Content == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("content is required"))
		return
	}

	state, err := s.engine.Invoke(r.Context(), id, req.Content)
	if err != nil {
		// Turn-level failure: log the real error, apologize to the user.
		slog.Error("Turn failed", "threadID", id, "error", err)
		s.jsonResponse(w, http.StatusBadGateway, map[string]string{"error": apologyMessage})
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

// --- Tools ---

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.registry.Specs())
}

// --- Health ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
