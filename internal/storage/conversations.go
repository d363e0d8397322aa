package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) PutConversation(ctx context.Context, c Conversation) error {
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, state, data, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, state = excluded.state, data = excluded.data, updated_at = excluded.updated_at`,
		c.ID, c.UserID, c.State, c.Data, updated.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id, state, data, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.State, &c.Data, &updated)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return Conversation{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return c, nil
}

// AddMilestone records m unless the user already reached that intent. It
// reports whether a row was inserted.
func (s *Store) AddMilestone(ctx context.Context, m Milestone) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO journey_milestones (user_id, intent, conversation_id, reached_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, intent) DO NOTHING`,
		m.UserID, m.Intent, m.ConversationID, m.ReachedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Milestones returns a user's journey in the order it was reached.
func (s *Store) Milestones(ctx context.Context, userID string) ([]Milestone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, intent, conversation_id, reached_at FROM journey_milestones
		WHERE user_id = ? ORDER BY reached_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Milestone
	for rows.Next() {
		var m Milestone
		var reached string
		if err := rows.Scan(&m.UserID, &m.Intent, &m.ConversationID, &reached); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, reached)
		if err != nil {
			return nil, fmt.Errorf("parsing reached_at: %w", err)
		}
		m.ReachedAt = t
		out = append(out, m)
	}
	return out, rows.Err()
}
