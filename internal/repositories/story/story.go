package story

import (
	"context"
	"errors"
	"time"

	"github.com/lumeapp/lume-stories/internal/domain"
)

var ErrNotFound = errors.New("story not found")
var ErrCannotCreate = errors.New("error create story")

type Repository interface {
	Create(ctx context.Context, story domain.Story) error
	GetByID(ctx context.Context, id string) (*domain.Story, error)
	// ListActiveByAuthors returns all stories by the given authors whose
	// expires_at is after now, oldest first.
	ListActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]domain.Story, error)
	// RecordView inserts a view row if absent. Calling it again for the
	// same (story, viewer) pair is a no-op.
	RecordView(ctx context.Context, storyID, viewerID string) error
	ListViewers(ctx context.Context, storyID string) ([]domain.StoryView, error)
	ListViewedStoryIDs(ctx context.Context, viewerID string) ([]string, error)
	// Delete removes the story and its view rows.
	Delete(ctx context.Context, storyID string) error
	// DeleteExpired removes stories expired for longer than the grace
	// period and returns the number of rows deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
