package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/culturetwin/twin-finder/backend/internal/model/profile"
	"github.com/culturetwin/twin-finder/backend/internal/model/taste"
	chatservice "github.com/culturetwin/twin-finder/backend/internal/service/chat"
	pipelineservice "github.com/culturetwin/twin-finder/backend/internal/service/pipeline"
)

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzePersonality(_ context.Context, _ string) profile.PersonalityAnalysis {
	return profile.Fallback()
}

func (stubAnalyzer) GenerateProfileSummary(_ context.Context, _, _ []string) string {
	return "A streamed summary."
}

type stubRecommender struct{}

func (stubRecommender) GetRecommendations(_ context.Context, _ taste.Category, _ int) []taste.Item {
	return []taste.Item{}
}

func TestHandleStreamRequest(t *testing.T) {
	chatSvc := chatservice.NewService()
	pipeline := pipelineservice.New(stubAnalyzer{}, stubRecommender{}, chatSvc)
	handler := New(pipeline, chatSvc)

	session, err := chatSvc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	resp := httptest.NewRecorder()
	if err := handler.HandleStreamRequest(context.Background(), resp, session.ID, "I love movies"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	body := resp.Body.String()
	for _, event := range []string{"event: start", "event: message", "event: recommendations", "event: end"} {
		if !strings.Contains(body, event) {
			t.Fatalf("expected %q in stream, got:\n%s", event, body)
		}
	}
	if !strings.Contains(body, "A streamed summary.") {
		t.Fatalf("expected summary in stream, got:\n%s", body)
	}
	if chatSvc.Loading(session.ID) {
		t.Fatal("loading flag must be cleared")
	}
}

func TestHandleStreamRequestUnknownSession(t *testing.T) {
	chatSvc := chatservice.NewService()
	pipeline := pipelineservice.New(stubAnalyzer{}, stubRecommender{}, chatSvc)
	handler := New(pipeline, chatSvc)

	resp := httptest.NewRecorder()
	err := handler.HandleStreamRequest(context.Background(), resp, "missing", "hello")
	if err != chatservice.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestHandleStreamRequestWhileRunInFlight(t *testing.T) {
	chatSvc := chatservice.NewService()
	pipeline := pipelineservice.New(stubAnalyzer{}, stubRecommender{}, chatSvc)
	handler := New(pipeline, chatSvc)

	session, _ := chatSvc.CreateSession(context.Background())
	if err := chatSvc.BeginRun(session.ID); err != nil {
		t.Fatalf("BeginRun err: %v", err)
	}
	defer chatSvc.EndRun(session.ID)

	resp := httptest.NewRecorder()
	err := handler.HandleStreamRequest(context.Background(), resp, session.ID, "hello")
	if err != chatservice.ErrRunInFlight {
		t.Fatalf("expected ErrRunInFlight, got %v", err)
	}
}
