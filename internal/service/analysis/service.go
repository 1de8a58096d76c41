package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/culturetwin/twin-finder/backend/internal/config"
	"github.com/culturetwin/twin-finder/backend/internal/model/profile"
)

const analyzeSystemPrompt = `Analyze the following personality description and extract key interests, personality traits, and preferences.
Return a JSON object with the following structure:
{
  "interests": ["interest1", "interest2", ...],
  "traits": ["trait1", "trait2", ...],
  "preferences": {
    "genres": [],
    "themes": []
  }
}

Make sure to return only valid JSON. Do not include any markdown formatting or additional text.`

const summarySystemPrompt = `Create a friendly, engaging paragraph that introduces a "Pop Culture Twin" profile based on the traits and interests you are given.
Make it fun and conversational, as if you're introducing someone to their perfect pop culture match.
Keep it under 150 words.`

// SummaryFallback replaces the profile summary when generation fails.
// Summary generation must never block the pipeline.
const SummaryFallback = "Here's your personalized pop culture twin profile based on your unique personality and interests!"

var (
	errEmptyReply = errors.New("empty reply from chat model")
	errStructure  = errors.New("analysis reply missing interests, traits or preferences")
)

// invoker is the slice of compose.Runnable the service needs. Narrowing the
// dependency keeps the compiled chain substitutable by a test double.
type invoker interface {
	Invoke(ctx context.Context, input map[string]any, opts ...compose.Option) (*schema.Message, error)
}

// Service is the text-analysis client: it extracts a personality profile from
// free-form user text and produces the human-readable profile summary. Every
// operation degrades to a fixed fallback instead of returning an error.
type Service struct {
	chain      invoker
	maxRetries int
	sleep      func(time.Duration)
}

// NewService compiles the prompt chain against the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile analysis chain: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Service{
		chain:      runnable,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}, nil
}

// AnalyzePersonality extracts interests, traits and preferences from the user
// text. Parse failures, structural failures and service-overload errors are
// retried with linear backoff; once the budget is exhausted, or on any other
// failure, the fixed fallback profile is returned.
func (s *Service) AnalyzePersonality(ctx context.Context, userText string) profile.PersonalityAnalysis {
	remaining := s.maxRetries

	for remaining > 0 {
		result, err := s.analyzeOnce(ctx, userText)
		if err == nil {
			return result
		}

		if !retryable(err) {
			log.Printf("[analysis] non-retryable failure, using fallback profile: %v", err)
			return profile.Fallback()
		}

		delay := time.Duration(4-remaining) * 2 * time.Second
		remaining--
		log.Printf("[analysis] %v, retrying in %s (%d attempts left)", err, delay, remaining)
		s.sleep(delay)
	}

	log.Printf("[analysis] retry budget exhausted, using fallback profile")
	return profile.Fallback()
}

func (s *Service) analyzeOnce(ctx context.Context, userText string) (profile.PersonalityAnalysis, error) {
	msg, err := s.chain.Invoke(ctx, map[string]any{
		"system": analyzeSystemPrompt,
		"query":  "User description: " + userText,
	})
	if err != nil {
		return profile.PersonalityAnalysis{}, fmt.Errorf("analysis chain invoke: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return profile.PersonalityAnalysis{}, errEmptyReply
	}

	// Preferences is a pointer here so an absent field is distinguishable
	// from an empty one.
	var payload struct {
		Interests   []string             `json:"interests"`
		Traits      []string             `json:"traits"`
		Preferences *profile.Preferences `json:"preferences"`
	}
	if err := extractJSON(msg.Content, &payload); err != nil {
		return profile.PersonalityAnalysis{}, err
	}

	if len(payload.Interests) == 0 || len(payload.Traits) == 0 || payload.Preferences == nil {
		return profile.PersonalityAnalysis{}, errStructure
	}

	return profile.PersonalityAnalysis{
		Interests:   payload.Interests,
		Traits:      payload.Traits,
		Preferences: *payload.Preferences,
	}, nil
}

// GenerateProfileSummary produces the friendly paragraph introducing the
// match profile. Any failure yields the fixed generic sentence.
func (s *Service) GenerateProfileSummary(ctx context.Context, traits, interests []string) string {
	query := fmt.Sprintf("Traits: %s\nInterests: %s",
		strings.Join(traits, ", "), strings.Join(interests, ", "))

	msg, err := s.chain.Invoke(ctx, map[string]any{
		"system": summarySystemPrompt,
		"query":  query,
	})
	if err != nil {
		log.Printf("[analysis] summary generation failed, using fallback: %v", err)
		return SummaryFallback
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return SummaryFallback
	}

	return strings.TrimSpace(msg.Content)
}

// retryable reports whether the failure is worth another attempt: malformed
// or incomplete JSON, or a transient overload signal from the remote service.
func retryable(err error) bool {
	if errors.Is(err, errNoJSON) || errors.Is(err, errStructure) {
		return true
	}
	text := err.Error()
	return strings.Contains(text, "overloaded") || strings.Contains(text, "503")
}
