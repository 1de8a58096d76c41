package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	chatHandler "github.com/culturetwin/twin-finder/backend/internal/handler/chat"
	"github.com/culturetwin/twin-finder/backend/internal/handler/stream"
	"github.com/culturetwin/twin-finder/backend/internal/handler/ws"
	chatService "github.com/culturetwin/twin-finder/backend/internal/service/chat"
	pipelineService "github.com/culturetwin/twin-finder/backend/internal/service/pipeline"
	"github.com/culturetwin/twin-finder/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. pipelineSvc may be nil when
// the analysis model is not configured; affected endpoints respond 503.
func NewRouter(chatSvc *chatService.Service, pipelineSvc *pipelineService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	conversationHandler := chatHandler.New(chatSvc, pipelineSvc)

	var streamHandler *stream.Handler
	if pipelineSvc != nil {
		streamHandler = stream.New(pipelineSvc, chatSvc)
	}

	r.Route("/api", func(api chi.Router) {
		conversationHandler.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "analysis unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
				switch err {
				case chatService.ErrSessionNotFound:
					utils.RespondError(w, http.StatusNotFound, "session not found")
				case chatService.ErrRunInFlight:
					utils.RespondError(w, http.StatusConflict, "analysis already in progress")
				default:
					utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
				}
			}
		})

		if pipelineSvc != nil {
			wsHandler := ws.New(pipelineSvc, chatSvc)
			wsHandler.RegisterRoutes(api)
		}
	})

	return r
}
