package graph

import (
	"sync"

	"github.com/Harshitk-cp/storybrain/internal/domain"
)

// ConflictQueue is the in-memory conflict log of an engine. The engine appends
// under the project lock; consumers may drain it from any goroutine.
type ConflictQueue struct {
	mu    sync.Mutex
	items []domain.Conflict
}

func NewConflictQueue() *ConflictQueue {
	return &ConflictQueue{}
}

func (q *ConflictQueue) Append(c domain.Conflict) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, c)
}

// Pending returns a copy of the queued conflicts, oldest first.
func (q *ConflictQueue) Pending() []domain.Conflict {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Conflict, len(q.items))
	copy(out, q.items)
	return out
}

// Drain empties the queue and returns what it held, oldest first.
func (q *ConflictQueue) Drain() []domain.Conflict {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *ConflictQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
