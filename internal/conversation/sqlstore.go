package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kalambet/tresses/internal/intent"
	"github.com/kalambet/tresses/internal/storage"
)

// SQLStore adapts storage.Store to MemoryStore and JourneyStore. Memory is
// kept as a JSON document per conversation.
type SQLStore struct {
	db *storage.Store
}

func NewSQLStore(db *storage.Store) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) LoadMemory(ctx context.Context, id string) (Memory, bool, error) {
	rec, err := s.db.GetConversation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Memory{}, false, nil
	}
	if err != nil {
		return Memory{}, false, fmt.Errorf("loading conversation %s: %w", id, err)
	}

	var m Memory
	if err := json.Unmarshal([]byte(rec.Data), &m); err != nil {
		return Memory{}, false, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	return m, true, nil
}

func (s *SQLStore) SaveMemory(ctx context.Context, m Memory) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding conversation %s: %w", m.ID, err)
	}
	return s.db.PutConversation(ctx, storage.Conversation{
		ID:        m.ID,
		UserID:    m.UserID,
		State:     string(m.State),
		Data:      string(data),
		UpdatedAt: m.LastActivity,
	})
}

func (s *SQLStore) AppendMilestone(ctx context.Context, userID string, m Milestone) (bool, error) {
	return s.db.AddMilestone(ctx, storage.Milestone{
		UserID:         userID,
		Intent:         string(m.Intent),
		ConversationID: m.ConversationID,
		ReachedAt:      m.At,
	})
}

func (s *SQLStore) Journey(ctx context.Context, userID string) ([]Milestone, error) {
	rows, err := s.db.Milestones(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading journey for %s: %w", userID, err)
	}
	out := make([]Milestone, len(rows))
	for i, r := range rows {
		out[i] = Milestone{Intent: intent.Type(r.Intent), ConversationID: r.ConversationID, At: r.ReachedAt}
	}
	return out, nil
}
