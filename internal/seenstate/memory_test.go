package seenstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker()

	assert.False(t, tracker.IsSeen(ctx, "viewer-1", "story-1"))

	tracker.MarkSeen(ctx, "viewer-1", "story-1")
	assert.True(t, tracker.IsSeen(ctx, "viewer-1", "story-1"))

	// Marking again stays a no-op insert.
	tracker.MarkSeen(ctx, "viewer-1", "story-1")
	assert.True(t, tracker.IsSeen(ctx, "viewer-1", "story-1"))

	// Scoped per viewer and per story.
	assert.False(t, tracker.IsSeen(ctx, "viewer-2", "story-1"))
	assert.False(t, tracker.IsSeen(ctx, "viewer-1", "story-2"))
}

func TestMemoryTrackerIgnoresEmptyIDs(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker()

	tracker.MarkSeen(ctx, "", "story-1")
	tracker.MarkSeen(ctx, "viewer-1", "")

	assert.False(t, tracker.IsSeen(ctx, "", "story-1"))
	assert.False(t, tracker.IsSeen(ctx, "viewer-1", ""))
}
