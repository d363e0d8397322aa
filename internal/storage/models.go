package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is a persisted conversation memory. Data holds the encoded
// memory; the storage layer does not interpret it.
type Conversation struct {
	ID        string
	UserID    string
	State     string
	Data      string
	UpdatedAt time.Time
}

// Milestone marks the first time a user raised a given intent.
type Milestone struct {
	UserID         string
	Intent         string
	ConversationID string
	ReachedAt      time.Time
}

// Job is a row of the durable job queue.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
