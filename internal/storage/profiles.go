package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/tresses/internal/profile"
)

// GetProfile implements profile.RecordStore. ok is false for an unknown id.
func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return profile.Profile{}, false, nil
	}
	if err != nil {
		return profile.Profile{}, false, err
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return profile.Profile{}, false, fmt.Errorf("decoding profile %s: %w", id, err)
	}
	return p, true, nil
}

// PutProfile upserts the whole profile. Concurrent writers are last-write-wins.
func (s *Store) PutProfile(ctx context.Context, p profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", p.ID, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	created := now
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, background, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET background = excluded.background, data = excluded.data, updated_at = excluded.updated_at`,
		p.ID, string(p.Cultural.Background), string(data), created, now,
	)
	return err
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	return err
}
