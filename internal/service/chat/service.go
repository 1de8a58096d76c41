package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/culturetwin/twin-finder/backend/internal/model/chat"
	"github.com/culturetwin/twin-finder/backend/internal/model/taste"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRunInFlight     = errors.New("a pipeline run is already in flight for this session")
)

// Greeting opens every new conversation.
const Greeting = "Hi there! I'm your Pop Culture Twin Finder. Tell me about your personality, interests, and preferences, and I'll find your perfect pop culture matches!"

// EventType labels the notifications delivered to live transports.
type EventType string

const (
	EventMessage         EventType = "message"
	EventRecommendations EventType = "recommendations"
	EventEnd             EventType = "end"
)

// Event is pushed to subscribers as a pipeline run progresses.
type Event struct {
	Type            EventType     `json:"type"`
	Message         *chat.Message `json:"message,omitempty"`
	Recommendations taste.Set     `json:"recommendations,omitempty"`
	Summary         string        `json:"summary,omitempty"`
}

// Service encapsulates conversation state: transcripts, the per-session
// recommendation set and profile summary, and the loading flag guarding
// at-most-one pipeline run per session.
type Service struct {
	mu          sync.RWMutex
	sessions    map[string]chat.Session
	messages    map[string][]chat.Message
	recs        map[string]taste.Set
	summaries   map[string]string
	loading     map[string]bool
	subscribers map[string]map[int]chan Event
	nextSubID   int
}

// NewService bootstraps the in-memory conversation store.
func NewService() *Service {
	return &Service{
		sessions:    make(map[string]chat.Session),
		messages:    make(map[string][]chat.Message),
		recs:        make(map[string]taste.Set),
		summaries:   make(map[string]string),
		loading:     make(map[string]bool),
		subscribers: make(map[string]map[int]chan Event),
	}
}

// CreateSession provisions an anonymous session with the greeting pre-seeded.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	greeting := chat.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Sender:    chat.SenderBot,
		Content:   Greeting,
		CreatedAt: session.CreatedAt,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = append(make([]chat.Message, 0, 16), greeting)
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// AppendMessage adds a turn to the session transcript and notifies subscribers.
func (s *Service) AppendMessage(_ context.Context, sessionID, sender, content string) (chat.Message, error) {
	message := chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	s.messages[sessionID] = append(s.messages[sessionID], message)
	s.notifyLocked(sessionID, Event{Type: EventMessage, Message: &message})
	return message, nil
}

// Transcript returns a copy of the stored messages for the session.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// BeginRun flips the loading flag for the session. It fails when another run
// is already in flight so transports can enforce single-flight submission.
func (s *Service) BeginRun(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	if s.loading[sessionID] {
		return ErrRunInFlight
	}
	s.loading[sessionID] = true
	return nil
}

// EndRun clears the loading flag unconditionally and emits the end event.
func (s *Service) EndRun(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loading, sessionID)
	s.notifyLocked(sessionID, Event{Type: EventEnd})
}

// Loading reports whether a pipeline run is in flight for the session.
func (s *Service) Loading(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[sessionID]
}

// SetRecommendations replaces the session's recommendation set and summary
// wholesale. Partial or incremental merges are deliberately not supported.
func (s *Service) SetRecommendations(sessionID string, set taste.Set, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}

	s.recs[sessionID] = set
	s.summaries[sessionID] = summary
	s.notifyLocked(sessionID, Event{Type: EventRecommendations, Recommendations: set, Summary: summary})
	return nil
}

// Recommendations returns the latest recommendation set and profile summary.
func (s *Service) Recommendations(sessionID string) (taste.Set, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, "", ErrSessionNotFound
	}

	set, ok := s.recs[sessionID]
	if !ok {
		set = taste.NewSet(taste.DefaultCategories()...)
	}
	return set, s.summaries[sessionID], nil
}

// Subscribe registers a live listener for the session. The returned cancel
// function must be called when the transport goes away.
func (s *Service) Subscribe(sessionID string) (<-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, nil, ErrSessionNotFound
	}

	if s.subscribers[sessionID] == nil {
		s.subscribers[sessionID] = make(map[int]chan Event)
	}

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan Event, 32)
	s.subscribers[sessionID][id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if subs, ok := s.subscribers[sessionID]; ok {
			if existing, ok := subs[id]; ok {
				delete(subs, id)
				close(existing)
			}
		}
	}

	return ch, cancel, nil
}

// notifyLocked fans an event out to subscribers. A listener that cannot keep
// up loses events rather than blocking the pipeline.
func (s *Service) notifyLocked(sessionID string, event Event) {
	for _, ch := range s.subscribers[sessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
