package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/kalambet/tresses/internal/advisor"
	"github.com/kalambet/tresses/internal/composer"
	"github.com/kalambet/tresses/internal/intent"
	"github.com/kalambet/tresses/internal/profile"
)

type State string

const (
	StateCreated State = "created"
	StateActive  State = "active"
	StateIdle    State = "idle"
)

// Turn is one exchange in the short-term log: a user message and the bot's
// reply. A delivered follow-up is a turn with no user message.
type Turn struct {
	UserMessage string      `json:"user_message,omitempty"`
	BotMessage  string      `json:"bot_message"`
	Intent      intent.Type `json:"intent,omitempty"`
	PracticeID  string      `json:"practice_id,omitempty"`
	Confidence  float64     `json:"confidence,omitempty"`
	FollowUp    bool        `json:"follow_up,omitempty"`
	At          time.Time   `json:"at"`
}

type Preferences struct {
	Style         composer.Style `json:"style"`
	CulturalLevel advisor.Level  `json:"cultural_level"`
}

// CulturalContext mirrors the parts of the user's cultural profile that
// shape replies in this conversation.
type CulturalContext struct {
	Background       profile.Background   `json:"background"`
	RespectLevel     profile.RespectLevel `json:"respect_level"`
	AdoptedPractices []string             `json:"adopted_practices,omitempty"`
}

// Memory is the per-conversation state. ShortTerm never holds more than the
// engine's window.
type Memory struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	State           State           `json:"state"`
	ShortTerm       []Turn          `json:"short_term"`
	Preferences     Preferences     `json:"preferences"`
	CulturalContext CulturalContext `json:"cultural_context"`
	CreatedAt       time.Time       `json:"created_at"`
	LastActivity    time.Time       `json:"last_activity"`
}

// Milestone is a long-term journey entry: the first time a user raised an
// intent.
type Milestone struct {
	Intent         intent.Type `json:"intent"`
	ConversationID string      `json:"conversation_id"`
	At             time.Time   `json:"at"`
}

// MemoryStore persists conversation memory. LoadMemory reports ok=false for
// an unknown conversation.
type MemoryStore interface {
	LoadMemory(ctx context.Context, id string) (Memory, bool, error)
	SaveMemory(ctx context.Context, m Memory) error
}

// JourneyStore keeps long-term milestones per user. AppendMilestone is a
// no-op returning false when the user already reached that intent.
type JourneyStore interface {
	AppendMilestone(ctx context.Context, userID string, m Milestone) (bool, error)
	Journey(ctx context.Context, userID string) ([]Milestone, error)
}

// MemoryStores is the in-process implementation of both stores.
type MemoryStores struct {
	mu       sync.RWMutex
	memories map[string]Memory
	journeys map[string][]Milestone
}

func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		memories: make(map[string]Memory),
		journeys: make(map[string][]Milestone),
	}
}

func (s *MemoryStores) LoadMemory(_ context.Context, id string) (Memory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return Memory{}, false, nil
	}
	return copyMemory(m), true, nil
}

func (s *MemoryStores) SaveMemory(_ context.Context, m Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[m.ID] = copyMemory(m)
	return nil
}

func (s *MemoryStores) AppendMilestone(_ context.Context, userID string, m Milestone) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.journeys[userID] {
		if existing.Intent == m.Intent {
			return false, nil
		}
	}
	s.journeys[userID] = append(s.journeys[userID], m)
	return true, nil
}

func (s *MemoryStores) Journey(_ context.Context, userID string) ([]Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Milestone(nil), s.journeys[userID]...), nil
}

func copyMemory(m Memory) Memory {
	m.ShortTerm = append([]Turn(nil), m.ShortTerm...)
	m.CulturalContext.AdoptedPractices = append([]string(nil), m.CulturalContext.AdoptedPractices...)
	return m
}
