package seenstate

import "context"

// Tracker is a latency-hiding cache of which stories a viewer has already
// opened. The story_views table stays the source of truth; the tracker only
// pre-warms unseen indicators before the next aggregate fetch lands.
type Tracker interface {
	IsSeen(ctx context.Context, viewerID, storyID string) bool
	MarkSeen(ctx context.Context, viewerID, storyID string)
}
