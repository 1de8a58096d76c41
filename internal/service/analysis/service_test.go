package analysis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/culturetwin/twin-finder/backend/internal/model/profile"
)

// fakeChain scripts a sequence of model replies.
type fakeChain struct {
	replies []reply
	calls   int
	inputs  []map[string]any
}

type reply struct {
	content string
	err     error
}

func (f *fakeChain) Invoke(_ context.Context, input map[string]any, _ ...compose.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	idx := f.calls
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	f.calls++
	r := f.replies[idx]
	if r.err != nil {
		return nil, r.err
	}
	return schema.AssistantMessage(r.content, nil), nil
}

func newService(chain *fakeChain) (*Service, *[]time.Duration) {
	delays := &[]time.Duration{}
	svc := &Service{
		chain:      chain,
		maxRetries: 3,
		sleep: func(d time.Duration) {
			*delays = append(*delays, d)
		},
	}
	return svc, delays
}

func TestAnalyzePersonalitySuccess(t *testing.T) {
	chain := &fakeChain{replies: []reply{{content: `{
		"interests": ["sci-fi", "fantasy"],
		"traits": ["curious"],
		"preferences": {"genres": ["sci-fi"], "themes": ["adventure"]}
	}`}}}
	svc, delays := newService(chain)

	got := svc.AnalyzePersonality(context.Background(), "I love sci-fi movies and fantasy novels")

	want := profile.PersonalityAnalysis{
		Interests:   []string{"sci-fi", "fantasy"},
		Traits:      []string{"curious"},
		Preferences: profile.Preferences{Genres: []string{"sci-fi"}, Themes: []string{"adventure"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if chain.calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", chain.calls)
	}
	if len(*delays) != 0 {
		t.Fatalf("expected no backoff sleeps, got %v", *delays)
	}

	query, _ := chain.inputs[0]["query"].(string)
	if query != "User description: I love sci-fi movies and fantasy novels" {
		t.Fatalf("unexpected query: %q", query)
	}
}

func TestAnalyzePersonalityExhaustsRetriesThenFallsBack(t *testing.T) {
	chain := &fakeChain{replies: []reply{{err: errors.New("model is overloaded")}}}
	svc, delays := newService(chain)

	got := svc.AnalyzePersonality(context.Background(), "tell me about me")

	if !reflect.DeepEqual(got, profile.Fallback()) {
		t.Fatalf("expected fallback profile, got %+v", got)
	}
	if chain.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", chain.calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}
	if !reflect.DeepEqual(*delays, want) {
		t.Fatalf("unexpected backoff schedule: %v", *delays)
	}
}

func TestAnalyzePersonalityRetriesParseFailure(t *testing.T) {
	chain := &fakeChain{replies: []reply{
		{content: "I'd rather chat about the weather."},
		{content: `{"interests":["music"],"traits":["creative"],"preferences":{"genres":[],"themes":[]}}`},
	}}
	svc, delays := newService(chain)

	got := svc.AnalyzePersonality(context.Background(), "music is my life")

	if got.Interests[0] != "music" {
		t.Fatalf("expected parsed analysis, got %+v", got)
	}
	if chain.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", chain.calls)
	}
	if len(*delays) != 1 || (*delays)[0] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", *delays)
	}
}

func TestAnalyzePersonalityRetriesStructuralFailure(t *testing.T) {
	chain := &fakeChain{replies: []reply{{content: `{"interests":["movies"]}`}}}
	svc, _ := newService(chain)

	got := svc.AnalyzePersonality(context.Background(), "movies")

	if !reflect.DeepEqual(got, profile.Fallback()) {
		t.Fatalf("expected fallback profile, got %+v", got)
	}
	if chain.calls != 3 {
		t.Fatalf("expected structural failures to be retried, got %d attempts", chain.calls)
	}
}

func TestAnalyzePersonalityNonRetryableFallsBackImmediately(t *testing.T) {
	chain := &fakeChain{replies: []reply{{err: errors.New("invalid api key")}}}
	svc, delays := newService(chain)

	got := svc.AnalyzePersonality(context.Background(), "hello")

	if !reflect.DeepEqual(got, profile.Fallback()) {
		t.Fatalf("expected fallback profile, got %+v", got)
	}
	if chain.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", chain.calls)
	}
	if len(*delays) != 0 {
		t.Fatalf("expected no backoff sleeps, got %v", *delays)
	}
}

func TestGenerateProfileSummary(t *testing.T) {
	chain := &fakeChain{replies: []reply{{content: "  Meet your pop culture twin!  "}}}
	svc, _ := newService(chain)

	got := svc.GenerateProfileSummary(context.Background(), []string{"curious"}, []string{"sci-fi"})
	if got != "Meet your pop culture twin!" {
		t.Fatalf("unexpected summary: %q", got)
	}

	query, _ := chain.inputs[0]["query"].(string)
	if query != "Traits: curious\nInterests: sci-fi" {
		t.Fatalf("unexpected query: %q", query)
	}
}

func TestGenerateProfileSummaryFallsBackOnError(t *testing.T) {
	chain := &fakeChain{replies: []reply{{err: errors.New("boom")}}}
	svc, _ := newService(chain)

	if got := svc.GenerateProfileSummary(context.Background(), nil, nil); got != SummaryFallback {
		t.Fatalf("expected fallback summary, got %q", got)
	}
}

func TestGenerateProfileSummaryFallsBackOnEmptyReply(t *testing.T) {
	chain := &fakeChain{replies: []reply{{content: "   "}}}
	svc, _ := newService(chain)

	if got := svc.GenerateProfileSummary(context.Background(), nil, nil); got != SummaryFallback {
		t.Fatalf("expected fallback summary, got %q", got)
	}
}
