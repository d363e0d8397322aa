// Package followup delivers delayed bot messages, such as a cultural insight
// sent a few seconds after the reply that surfaced a practice.
//
// Follow-ups are fire-and-forget. A follow-up carries no ordering guarantee
// relative to a user message sent before it fires, so it can land after a
// later turn in the same conversation.
package followup

import (
	"context"
	"errors"
	"time"
)

// KindCulturalInsight is the only follow-up kind the conversation engine
// schedules today.
const KindCulturalInsight = "cultural_insight"

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("followup: scheduler closed")

// Message is a bot turn queued for later delivery.
type Message struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Kind           string `json:"kind"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Attribution    string `json:"attribution,omitempty"`
}

// Deliverer hands a due follow-up to the conversation it belongs to.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, msg Message) error

func (f DelivererFunc) Deliver(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Scheduler queues follow-ups. Cancel reports whether a pending follow-up
// was removed before it fired.
type Scheduler interface {
	Schedule(ctx context.Context, msg Message, delay time.Duration) (string, error)
	Cancel(id string) bool
}

// Clock abstracts timers so tests can fire follow-ups deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
