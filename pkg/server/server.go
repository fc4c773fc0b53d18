// Package server exposes the REST and WebSocket API around the engine.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mpatwa/resolute/pkg/engine"
	"github.com/mpatwa/resolute/pkg/store"
	"github.com/mpatwa/resolute/pkg/tool"
)

// apologyMessage is what end users see on a turn-level failure. The real
// error is only logged.
const apologyMessage = "Sorry, something went wrong while handling your request. Please try again."

// TurnEngine runs conversation turns. Implemented by *engine.Engine.
type TurnEngine interface {
	Invoke(ctx context.Context, threadID, userMessage string) (*engine.State, error)
	GetState(ctx context.Context, threadID string) (*engine.State, error)
}

// Server serves the REST API and chat websocket.
type Server struct {
	engine   TurnEngine
	threads  store.ThreadStore
	registry *tool.Registry
	srv      *http.Server
}

// New creates a new Server.
func New(eng TurnEngine, threads store.ThreadStore, registry *tool.Registry) *Server {
	return &Server{
		engine:   eng,
		threads:  threads,
		registry: registry,
	}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Threads
	mux.HandleFunc("GET /api/threads", s.handleListThreads)
	mux.HandleFunc("POST /api/threads", s.handleCreateThread)
	mux.HandleFunc("GET /api/threads/{id}", s.handleGetThread)
	mux.HandleFunc("DELETE /api/threads/{id}", s.handleDeleteThread)

	// Turn invocation
	mux.HandleFunc("POST /api/threads/{id}/messages", s.handleInvoke)

	// Tools
	mux.HandleFunc("GET /api/tools", s.handleListTools)

	// Health
	mux.HandleFunc("GET /api/healthz", s.handleHealthz)

	// WebSocket
	mux.HandleFunc("/api/threads/{id}/chat", s.handleChatWebSocket)

	return s.corsMiddleware(mux)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
