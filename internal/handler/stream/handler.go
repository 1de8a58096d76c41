package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"

	chatservice "github.com/culturetwin/twin-finder/backend/internal/service/chat"
	pipelineservice "github.com/culturetwin/twin-finder/backend/internal/service/pipeline"
	"github.com/culturetwin/twin-finder/backend/pkg/utils"
)

// Handler streams pipeline progress via Server-Sent Events.
type Handler struct {
	pipeline *pipelineservice.Service
	chatSvc  *chatservice.Service
}

// New creates a new stream handler.
func New(pipeline *pipelineservice.Service, chatSvc *chatservice.Service) *Handler {
	return &Handler{pipeline: pipeline, chatSvc: chatSvc}
}

// HandleStreamRequest runs the pipeline for userMessage and relays transcript
// and recommendation events to the client as they happen, terminating with an
// end event once the run settles.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	if h.chatSvc.Loading(sessionID) {
		return chatservice.ErrRunInFlight
	}

	events, cancel, err := h.chatSvc.Subscribe(sessionID)
	if err != nil {
		return err
	}
	defer cancel()

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "start", map[string]any{"sessionId": sessionID})

	// The run must complete even if the stream consumer disconnects.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		if err := h.pipeline.ProcessUserInput(runCtx, sessionID, userMessage); err != nil {
			log.Printf("[stream] pipeline run failed for session=%s: %v", sessionID, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[stream] client disconnected from session=%s", sessionID)
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			switch event.Type {
			case chatservice.EventMessage:
				utils.SendSSEEvent(w, flusher, "message", event.Message)
			case chatservice.EventRecommendations:
				utils.SendSSEEvent(w, flusher, "recommendations", map[string]any{
					"recommendations": event.Recommendations,
					"summary":         event.Summary,
				})
			case chatservice.EventEnd:
				utils.SendSSEEvent(w, flusher, "end", map[string]any{"finished": true})
				log.Printf("[stream] completed run for session=%s", sessionID)
				return nil
			}
		}
	}
}
