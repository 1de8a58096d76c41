package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

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
	return "A test summary."
}

type stubRecommender struct{}

func (stubRecommender) GetRecommendations(_ context.Context, category taste.Category, _ int) []taste.Item {
	if category != taste.Movie {
		return []taste.Item{}
	}
	return []taste.Item{{ID: "m1", Name: "Dune", Category: taste.Movie}}
}

func setupRouter() (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService()
	pipeline := pipelineservice.New(stubAnalyzer{}, stubRecommender{}, chatSvc)
	handler := New(chatSvc, pipeline)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func createSession(t *testing.T, r *chi.Mux) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected a session id")
	}
	return session.ID
}

func postInput(r *chi.Mux, sessionID, text string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(map[string]string{"text": text})
	req := httptest.NewRequest(http.MethodPost, "/session/"+sessionID+"/input", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateSession(t *testing.T) {
	r, _ := setupRouter()
	createSession(t, r)
}

func TestTranscriptUnknownSession(t *testing.T) {
	r, _ := setupRouter()
	req := httptest.NewRequest(http.MethodGet, "/session/missing/messages", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestInputRunsPipeline(t *testing.T) {
	r, chatSvc := setupRouter()
	sessionID := createSession(t, r)

	resp := postInput(r, sessionID, "I love sci-fi movies")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
		Summary         string                      `json:"summary"`
		Recommendations map[string][]map[string]any `json:"recommendations"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(body.Messages) != 5 {
		t.Fatalf("expected 5 transcript messages, got %d", len(body.Messages))
	}
	if body.Summary != "A test summary." {
		t.Fatalf("unexpected summary: %q", body.Summary)
	}
	if len(body.Recommendations["movie"]) != 1 {
		t.Fatalf("expected 1 movie, got %d", len(body.Recommendations["movie"]))
	}
	if chatSvc.Loading(sessionID) {
		t.Fatal("loading flag must be cleared")
	}
}

func TestInputBlankText(t *testing.T) {
	r, _ := setupRouter()
	sessionID := createSession(t, r)

	resp := postInput(r, sessionID, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestInputInvalidBody(t *testing.T) {
	r, _ := setupRouter()
	sessionID := createSession(t, r)

	req := httptest.NewRequest(http.MethodPost, "/session/"+sessionID+"/input", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestInputUnknownSession(t *testing.T) {
	r, _ := setupRouter()
	resp := postInput(r, "missing", "hello")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestInputWhileRunInFlight(t *testing.T) {
	r, chatSvc := setupRouter()
	sessionID := createSession(t, r)

	if err := chatSvc.BeginRun(sessionID); err != nil {
		t.Fatalf("BeginRun err: %v", err)
	}
	defer chatSvc.EndRun(sessionID)

	resp := postInput(r, sessionID, "hello")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestInputWithoutPipeline(t *testing.T) {
	chatSvc := chatservice.NewService()
	handler := New(chatSvc, nil)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	session, _ := chatSvc.CreateSession(context.Background())
	resp := postInput(r, session.ID, "hello")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	r, _ := setupRouter()
	sessionID := createSession(t, r)

	postInput(r, sessionID, "movies please")

	req := httptest.NewRequest(http.MethodGet, "/session/"+sessionID+"/recommendations", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Recommendations map[string][]map[string]any `json:"recommendations"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Recommendations["movie"]) != 1 {
		t.Fatalf("expected 1 movie, got %d", len(body.Recommendations["movie"]))
	}
	if _, ok := body.Recommendations["book"]; !ok {
		t.Fatal("expected empty book category to be present")
	}
}
