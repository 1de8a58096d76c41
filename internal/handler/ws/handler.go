package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatservice "github.com/culturetwin/twin-finder/backend/internal/service/chat"
	pipelineservice "github.com/culturetwin/twin-finder/backend/internal/service/pipeline"
)

// Handler serves the websocket chat transport.
type Handler struct {
	pipeline *pipelineservice.Service
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(pipeline *pipelineservice.Service, chatSvc *chatservice.Service) *Handler {
	return &Handler{
		pipeline: pipeline,
		chatSvc:  chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// conn serializes writes; gorilla connections permit one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) send(msg outgoingMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Printf("[ws] failed to write message: %v", err)
	}
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	events, cancel, err := h.chatSvc.Subscribe(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}

	c := &conn{ws: socket}
	log.Printf("[ws] connection opened for session=%s", sessionID)

	go h.writePump(c, sessionID, events)
	h.readPump(c, sessionID, cancel)
}

// writePump forwards conversation events until the subscription is cancelled.
func (h *Handler) writePump(c *conn, sessionID string, events <-chan chatservice.Event) {
	for event := range events {
		switch event.Type {
		case chatservice.EventMessage:
			c.send(outgoingMessage{Type: "message", SessionID: sessionID, Data: event.Message})
		case chatservice.EventRecommendations:
			c.send(outgoingMessage{Type: "recommendations", SessionID: sessionID, Data: map[string]any{
				"recommendations": event.Recommendations,
				"summary":         event.Summary,
			}})
		case chatservice.EventEnd:
			c.send(outgoingMessage{Type: "end", SessionID: sessionID})
		}
	}
}

// readPump consumes client frames until the connection drops.
func (h *Handler) readPump(c *conn, sessionID string, cancel func()) {
	defer func() {
		cancel()
		c.ws.Close()
		log.Printf("[ws] connection closed for session=%s", sessionID)
	}()

	for {
		var inbound inboundMessage
		if err := c.ws.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed for session=%s: %v", sessionID, err)
			}
			return
		}

		switch inbound.Type {
		case "input":
			h.handleInput(c, sessionID, inbound.Text)
		default:
			c.send(outgoingMessage{Type: "error", SessionID: sessionID, Data: "unknown message type: " + inbound.Type})
		}
	}
}

func (h *Handler) handleInput(c *conn, sessionID, text string) {
	if h.pipeline == nil {
		c.send(outgoingMessage{Type: "error", SessionID: sessionID, Data: "analysis unavailable"})
		return
	}
	if h.chatSvc.Loading(sessionID) {
		c.send(outgoingMessage{Type: "error", SessionID: sessionID, Data: "analysis already in progress"})
		return
	}

	// Detached from the socket lifetime: a started run always finishes.
	go func() {
		if err := h.pipeline.ProcessUserInput(context.Background(), sessionID, text); err != nil {
			log.Printf("[ws] pipeline run failed for session=%s: %v", sessionID, err)
			c.send(outgoingMessage{Type: "error", SessionID: sessionID, Data: "analysis already in progress"})
		}
	}()
}
