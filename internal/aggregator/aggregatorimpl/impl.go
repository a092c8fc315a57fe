package aggregatorimpl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lumeapp/lume-stories/internal/aggregator"
	"github.com/lumeapp/lume-stories/internal/domain"
	"github.com/lumeapp/lume-stories/internal/repositories/socialgraph"
	"github.com/lumeapp/lume-stories/internal/repositories/story"
	"github.com/lumeapp/lume-stories/internal/repositories/user"
	"github.com/lumeapp/lume-stories/internal/seenstate"
	"github.com/lumeapp/lume-stories/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

const profileWorkers = 5

type Opts struct {
	fx.In

	StoryRepo   story.Repository
	GraphRepo   socialgraph.Repository
	UserRepo    user.Repository
	SeenTracker seenstate.Tracker
	Logger      logger.Logger
}

type ServiceImpl struct {
	StoryRepo   story.Repository
	GraphRepo   socialgraph.Repository
	UserRepo    user.Repository
	SeenTracker seenstate.Tracker
	Logger      logger.Logger
}

func New(opts Opts) *ServiceImpl {
	return &ServiceImpl{
		StoryRepo:   opts.StoryRepo,
		GraphRepo:   opts.GraphRepo,
		UserRepo:    opts.UserRepo,
		SeenTracker: opts.SeenTracker,
		Logger:      opts.Logger.WithComponent("Aggregator"),
	}
}

var _ aggregator.Service = (*ServiceImpl)(nil)

func (s *ServiceImpl) GetStoryGroups(ctx context.Context, viewerID string) ([]domain.StoryGroup, error) {
	authorIDs, err := s.resolveGraph(ctx, viewerID)
	if err != nil {
		// A broken graph means a broken feed. Do not partially aggregate.
		return nil, fmt.Errorf("failed to resolve social graph for %s: %w", viewerID, err)
	}

	stories, err := s.StoryRepo.ListActiveByAuthors(ctx, authorIDs, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list active stories: %w", err)
	}
	if len(stories) == 0 {
		return nil, nil
	}

	seen, err := s.seenSet(ctx, viewerID, stories)
	if err != nil {
		return nil, err
	}

	groups := groupByAuthor(stories, seen, viewerID)
	s.hydrateProfiles(ctx, groups)

	return groups, nil
}

// resolveGraph returns the union of following, followers and the viewer
// itself, in that encounter order.
func (s *ServiceImpl) resolveGraph(ctx context.Context, viewerID string) ([]string, error) {
	following, err := s.GraphRepo.ListFollowing(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	followers, err := s.GraphRepo.ListFollowers(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	unique := make(map[string]struct{}, len(following)+len(followers)+1)
	var ids []string
	for _, id := range append(append(following, followers...), viewerID) {
		if _, ok := unique[id]; ok {
			continue
		}
		unique[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *ServiceImpl) seenSet(ctx context.Context, viewerID string, stories []domain.Story) (map[string]struct{}, error) {
	viewedIDs, err := s.StoryRepo.ListViewedStoryIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list viewed story ids: %w", err)
	}

	seen := make(map[string]struct{}, len(viewedIDs))
	for _, id := range viewedIDs {
		seen[id] = struct{}{}
	}

	// The tracker fills the window between a local view and the server
	// round trip; a tracker hit counts as seen even without a view row.
	for _, st := range stories {
		if _, ok := seen[st.ID]; ok {
			continue
		}
		if s.SeenTracker.IsSeen(ctx, viewerID, st.ID) {
			seen[st.ID] = struct{}{}
		}
	}

	return seen, nil
}

func groupByAuthor(stories []domain.Story, seen map[string]struct{}, viewerID string) []domain.StoryGroup {
	index := make(map[string]int)
	var groups []domain.StoryGroup

	for _, st := range stories {
		_, viewed := seen[st.ID]
		st.Viewed = viewed

		i, ok := index[st.AuthorID]
		if !ok {
			i = len(groups)
			index[st.AuthorID] = i
			groups = append(groups, domain.StoryGroup{AuthorID: st.AuthorID})
		}
		groups[i].Stories = append(groups[i].Stories, st)
		if !viewed {
			groups[i].HasUnseen = true
		}
	}

	// The viewer's own group always sorts first; everything else keeps
	// encounter order.
	for i, g := range groups {
		if g.AuthorID == viewerID && i != 0 {
			own := groups[i]
			copy(groups[1:i+1], groups[:i])
			groups[0] = own
			break
		}
	}

	return groups
}

// hydrateProfiles fills author display fields concurrently. A missing
// profile degrades to empty fields instead of failing the whole feed.
func (s *ServiceImpl) hydrateProfiles(ctx context.Context, groups []domain.StoryGroup) {
	pool, err := ants.NewPool(profileWorkers, ants.WithPreAlloc(true))
	if err != nil {
		s.Logger.Warn("Failed to create profile pool, hydrating serially", "error", err)
		for i := range groups {
			s.hydrateOne(ctx, &groups[i])
		}
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range groups {
		wg.Add(1)
		group := &groups[i]
		if err := pool.Submit(func() {
			defer wg.Done()
			s.hydrateOne(ctx, group)
		}); err != nil {
			wg.Done()
			s.hydrateOne(ctx, group)
		}
	}
	wg.Wait()
}

func (s *ServiceImpl) hydrateOne(ctx context.Context, group *domain.StoryGroup) {
	profile, err := s.UserRepo.GetByID(ctx, group.AuthorID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.Logger.Warn("Failed to load author profile", "author_id", group.AuthorID, "error", err)
		}
		return
	}
	group.Username = profile.Username
	group.DisplayName = profile.DisplayName
	group.AvatarURL = profile.AvatarURL
}
