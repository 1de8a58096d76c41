package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/culturetwin/twin-finder/backend/internal/model/taste"
	chatservice "github.com/culturetwin/twin-finder/backend/internal/service/chat"
	pipelineservice "github.com/culturetwin/twin-finder/backend/internal/service/pipeline"
	"github.com/culturetwin/twin-finder/backend/pkg/utils"
)

// Handler exposes the conversation REST surface.
type Handler struct {
	chatSvc  *chatservice.Service
	pipeline *pipelineservice.Service
}

// New creates the chat handler. pipeline may be nil when the analysis model
// is not configured; input submission then responds 503.
func New(chatSvc *chatservice.Service, pipeline *pipelineservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc, pipeline: pipeline}
}

// RegisterRoutes mounts the conversation endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}/messages", h.handleTranscript)
	r.Get("/session/{sessionID}/recommendations", h.handleRecommendations)
	r.Post("/session/{sessionID}/input", h.handleInput)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chatSvc.Transcript(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	set, summary, err := h.chatSvc.Recommendations(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, recommendationsPayload(set, summary))
}

func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if h.pipeline == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "analysis unavailable")
		return
	}

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	// Submission is disabled while a run is in flight; the pipeline itself
	// does not queue.
	if h.chatSvc.Loading(sessionID) {
		utils.RespondError(w, http.StatusConflict, "analysis already in progress")
		return
	}

	// A run, once started, completes even if the client goes away.
	runCtx := context.WithoutCancel(r.Context())
	if err := h.pipeline.ProcessUserInput(runCtx, sessionID, payload.Text); err != nil {
		switch {
		case errors.Is(err, chatservice.ErrRunInFlight):
			utils.RespondError(w, http.StatusConflict, "analysis already in progress")
		case errors.Is(err, chatservice.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, "session not found")
		default:
			utils.RespondError(w, http.StatusInternalServerError, "failed to process input")
		}
		return
	}

	messages, err := h.chatSvc.Transcript(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	set, summary, err := h.chatSvc.Recommendations(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	response := recommendationsPayload(set, summary)
	response["messages"] = messages
	utils.RespondJSON(w, http.StatusOK, response)
}

func recommendationsPayload(set taste.Set, summary string) map[string]any {
	return map[string]any{
		"recommendations": set,
		"summary":         summary,
	}
}
