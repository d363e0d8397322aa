package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kalambet/tresses/internal/recommend"
)

// RecordFeedback implements recommend.FeedbackStore.
func (s *Store) RecordFeedback(ctx context.Context, f recommend.Feedback) error {
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, recommendation_id, recommendation_type, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.RecommendationID, string(f.RecommendationType), f.Rating, f.Comment,
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting feedback %s: %w", f.ID, err)
	}
	return nil
}

// FeedbackStats counts feedback for a user and recommendation type. A rating
// of 4 or more is positive.
func (s *Store) FeedbackStats(ctx context.Context, userID string, t recommend.Type) (recommend.FeedbackStats, error) {
	var st recommend.FeedbackStats
	var positive sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN rating >= 4 THEN 1 ELSE 0 END)
		FROM feedback WHERE user_id = ? AND recommendation_type = ?`,
		userID, string(t),
	).Scan(&st.Total, &positive)
	if err != nil {
		return recommend.FeedbackStats{}, err
	}
	st.Positive = int(positive.Int64)
	return st, nil
}
