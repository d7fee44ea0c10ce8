package watch

import (
	"sync"

	"github.com/confdrift/confdrift/internal/tools"
)

// PendingQueue holds at most one actionable external change per tool.
// A newer change for the same tool replaces the pending one; the log
// marks the replaced record superseded.
type PendingQueue struct {
	mu      sync.Mutex
	pending map[tools.ID]*ExternalChange
}

// NewPendingQueue creates an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{pending: make(map[tools.ID]*ExternalChange)}
}

// Put stores a change as the tool's pending entry, reporting whether a
// previous entry was replaced.
func (q *PendingQueue) Put(change *ExternalChange) (superseded bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, superseded = q.pending[change.Tool]
	q.pending[change.Tool] = change
	return superseded
}

// Get returns the pending change for a tool, or nil.
func (q *PendingQueue) Get(tool tools.ID) *ExternalChange {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending[tool]
}

// Take removes and returns the pending change for a tool, or nil.
func (q *PendingQueue) Take(tool tools.ID) *ExternalChange {
	q.mu.Lock()
	defer q.mu.Unlock()
	change := q.pending[tool]
	delete(q.pending, tool)
	return change
}

// Pending returns the tools that currently have an unresolved change.
func (q *PendingQueue) Pending() []tools.ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]tools.ID, 0, len(q.pending))
	for id := range q.pending {
		out = append(out, id)
	}
	return out
}
