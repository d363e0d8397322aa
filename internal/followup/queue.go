package followup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tresses/internal/metrics"
)

// TimerQueue is the in-process Scheduler. Pending follow-ups are lost on
// restart; use JobScheduler when they must survive one.
type TimerQueue struct {
	deliverer Deliverer
	clock     Clock
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]Timer
	closed  bool
	wg      sync.WaitGroup
}

// NewTimerQueue creates a TimerQueue. A nil clock means the wall clock.
func NewTimerQueue(d Deliverer, clock Clock) *TimerQueue {
	if clock == nil {
		clock = realClock{}
	}
	return &TimerQueue{
		deliverer: d,
		clock:     clock,
		timeout:   10 * time.Second,
		pending:   make(map[string]Timer),
	}
}

func (q *TimerQueue) Schedule(_ context.Context, msg Message, delay time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrClosed
	}

	id := uuid.New().String()
	q.wg.Add(1)
	q.pending[id] = q.clock.AfterFunc(max(delay, 0), func() { q.fire(id, msg) })
	metrics.FollowupsScheduled.Inc()
	return id, nil
}

// fire runs on the timer goroutine. The caller's context is long gone by
// now, so delivery gets its own bounded one.
func (q *TimerQueue) fire(id string, msg Message) {
	defer q.wg.Done()

	q.mu.Lock()
	_, ok := q.pending[id]
	delete(q.pending, id)
	q.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	err := q.deliverer.Deliver(ctx, msg)
	metrics.RecordFollowupDelivery(err)
	if err != nil {
		slog.Warn("followup: delivery failed", "id", id, "conversation_id", msg.ConversationID, "error", err)
	}
}

func (q *TimerQueue) Cancel(id string) bool {
	q.mu.Lock()
	t, ok := q.pending[id]
	delete(q.pending, id)
	q.mu.Unlock()
	if !ok {
		return false
	}
	if t.Stop() {
		q.wg.Done()
	}
	return true
}

// Pending returns the number of follow-ups that have not fired.
func (q *TimerQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops every pending timer and waits for in-flight deliveries.
func (q *TimerQueue) Close() {
	q.mu.Lock()
	q.closed = true
	for id, t := range q.pending {
		delete(q.pending, id)
		if t.Stop() {
			q.wg.Done()
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}
