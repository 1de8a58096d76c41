package pipeline

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/culturetwin/twin-finder/backend/internal/model/chat"
	"github.com/culturetwin/twin-finder/backend/internal/model/profile"
	"github.com/culturetwin/twin-finder/backend/internal/model/taste"
	chatservice "github.com/culturetwin/twin-finder/backend/internal/service/chat"
)

// Bot messages appended during a pipeline run.
const (
	MessageAnalyzing            = "Analyzing your personality and finding your perfect pop culture matches..."
	MessageRecommendationsReady = "Here are your personalized pop culture recommendations!"
	MessageNoRecommendations    = "I couldn't fetch any recommendations at the moment, but here's a summary of your pop culture profile:"
	MessageFailure              = "Oops! Something went wrong while processing your request. Please try again."
)

// recommendationsPerCategory is how many items each category fetch requests.
const recommendationsPerCategory = 3

// Analyzer is the text-analysis client contract. Both operations fail soft,
// so the pipeline never sees an error from them.
type Analyzer interface {
	AnalyzePersonality(ctx context.Context, userText string) profile.PersonalityAnalysis
	GenerateProfileSummary(ctx context.Context, traits, interests []string) string
}

// Recommender fetches normalized items for one category.
type Recommender interface {
	GetRecommendations(ctx context.Context, category taste.Category, limit int) []taste.Item
}

// Service orchestrates one user turn: analyze the input, fan recommendation
// requests out per category, merge the results and narrate them back into the
// transcript.
type Service struct {
	analyzer    Analyzer
	recommender Recommender
	chat        *chatservice.Service
}

// New wires the pipeline to its collaborators.
func New(analyzer Analyzer, recommender Recommender, chatSvc *chatservice.Service) *Service {
	return &Service{
		analyzer:    analyzer,
		recommender: recommender,
		chat:        chatSvc,
	}
}

// ProcessUserInput runs the full pipeline for one submission. Blank input is
// a no-op. The loading flag is cleared on every path, and any failure that
// escapes the fail-soft clients surfaces as a single generic bot message
// rather than an error.
func (s *Service) ProcessUserInput(ctx context.Context, sessionID, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if err := s.chat.BeginRun(sessionID); err != nil {
		return err
	}
	defer s.chat.EndRun(sessionID)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[pipeline] unexpected failure for session=%s: %v", sessionID, r)
			if _, err := s.chat.AppendMessage(ctx, sessionID, chat.SenderBot, MessageFailure); err != nil {
				log.Printf("[pipeline] failed to append failure message: %v", err)
			}
		}
	}()

	s.appendMessage(ctx, sessionID, chat.SenderUser, trimmed)
	s.appendMessage(ctx, sessionID, chat.SenderBot, MessageAnalyzing)

	analysis := s.analyzer.AnalyzePersonality(ctx, trimmed)

	// The category set is fixed per run; selection is not derived from the
	// analysis (see CategoriesForInterests).
	categories := taste.DefaultCategories()
	results := make([][]taste.Item, len(categories))

	var wg sync.WaitGroup
	for i, category := range categories {
		wg.Add(1)
		go func(slot int, category taste.Category) {
			defer wg.Done()
			results[slot] = s.recommender.GetRecommendations(ctx, category, recommendationsPerCategory)
		}(i, category)
	}
	wg.Wait()

	set := taste.NewSet(categories...)
	for i, category := range categories {
		if len(results[i]) > 0 {
			set[category] = results[i]
		}
	}

	summary := s.analyzer.GenerateProfileSummary(ctx, analysis.Traits, analysis.Interests)

	if err := s.chat.SetRecommendations(sessionID, set, summary); err != nil {
		log.Printf("[pipeline] failed to store recommendations for session=%s: %v", sessionID, err)
	}

	s.appendMessage(ctx, sessionID, chat.SenderBot, summary)
	if set.HasItems() {
		s.appendMessage(ctx, sessionID, chat.SenderBot, MessageRecommendationsReady)
	} else {
		s.appendMessage(ctx, sessionID, chat.SenderBot, MessageNoRecommendations)
	}

	log.Printf("[pipeline] completed run for session=%s, categories=%d", sessionID, len(categories))
	return nil
}

func (s *Service) appendMessage(ctx context.Context, sessionID, sender, content string) {
	if _, err := s.chat.AppendMessage(ctx, sessionID, sender, content); err != nil {
		log.Printf("[pipeline] failed to append %s message: %v", sender, err)
	}
}
