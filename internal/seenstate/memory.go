package seenstate

import (
	"context"
	"sync"
)

// MemoryTracker is a process-local Tracker for tests and single-node runs.
type MemoryTracker struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		seen: make(map[string]struct{}),
	}
}

var _ Tracker = (*MemoryTracker)(nil)

func (t *MemoryTracker) IsSeen(_ context.Context, viewerID, storyID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.seen[seenKey(viewerID, storyID)]
	return ok
}

func (t *MemoryTracker) MarkSeen(_ context.Context, viewerID, storyID string) {
	if viewerID == "" || storyID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[seenKey(viewerID, storyID)] = struct{}{}
}
