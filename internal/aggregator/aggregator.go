package aggregator

import (
	"context"

	"github.com/lumeapp/lume-stories/internal/domain"
)

// Service builds the read-side story feed: active stories joined with the
// viewer's social graph, grouped by author, with per-story seen flags.
type Service interface {
	GetStoryGroups(ctx context.Context, viewerID string) ([]domain.StoryGroup, error)
}
