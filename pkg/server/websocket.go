package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mpatwa/resolute/pkg/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn serializes writes to a websocket connection.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// handleChatWebSocket streams thread messages to the client and runs a turn
// for each message the client sends. The thread is created implicitly on the
// first message, like the REST invocation path.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	if threadID == "" {
		http.Error(w, "Missing thread ID", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	conn := &wsConn{ws: ws}
	done := make(chan struct{})
	updates := s.threads.Subscribe()
	defer s.threads.Unsubscribe(updates)

	// Send current state.
	sentIDs := make(map[string]bool)
	if err := s.syncThread(conn, threadID, sentIDs); err != nil {
		slog.Error("Failed initial thread sync", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)

	// Writer goroutine: pushes new messages to the client.
	go func() {
		defer wg.Done()
		defer ws.Close()

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case eventID := <-updates:
				if eventID == threadID {
					if err := s.syncThread(conn, threadID, sentIDs); err != nil {
						slog.Error("Failed thread sync", "error", err)
						return
					}
				}
			case <-ticker.C:
				// Keepalive
			}
		}
	}()

	// Reader loop: each received message runs one turn.
	for {
		var msg struct {
			Content string `json:"content"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			slog.Error("WebSocket read error", "error", err)
			break
		}

		if msg.Content != "" {
			// Run the turn in the background; the writer goroutine pushes
			// the new messages as they are appended.
			go func(content string) {
				if _, err := s.engine.Invoke(context.Background(), threadID, content); err != nil {
					slog.Error("Turn failed", "threadID", threadID, "error", err)
					conn.WriteJSON(map[string]string{"error": apologyMessage})
				}
			}(msg.Content)
		}
	}

	close(done)
	wg.Wait()
}

func (s *Server) syncThread(conn *wsConn, threadID string, sentIDs map[string]bool) error {
	state, err := s.engine.GetState(context.Background(), threadID)
	if errors.Is(err, store.ErrNotFound) {
		// Thread not created yet; nothing to sync.
		return nil
	}
	if err != nil {
		return err
	}

	for _, m := range state.Messages {
		if !sentIDs[m.ID] {
			if err := conn.WriteJSON(m); err != nil {
				return err
			}
			sentIDs[m.ID] = true
		}
	}
	return nil
}
