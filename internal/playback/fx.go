package playback

import (
	"github.com/jonboulle/clockwork"
	"github.com/lumeapp/lume-stories/internal/domain"
	"github.com/lumeapp/lume-stories/internal/repositories/story"
	"github.com/lumeapp/lume-stories/internal/seenstate"
	"github.com/lumeapp/lume-stories/pkg/config"
	"github.com/lumeapp/lume-stories/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	StoryRepo   story.Repository
	SeenTracker seenstate.Tracker
	Logger      logger.Logger
	Config      *config.Config
}

// Factory stamps out viewing sessions with shared dependencies and the
// configured tick cadence.
type Factory struct {
	deps Deps
}

func NewFactory(opts Opts) *Factory {
	return &Factory{
		deps: Deps{
			StoryRepo:     opts.StoryRepo,
			SeenTracker:   opts.SeenTracker,
			Logger:        opts.Logger.WithComponent("Playback"),
			Clock:         clockwork.NewRealClock(),
			TickInterval:  opts.Config.Playback.TickInterval,
			TicksPerStory: opts.Config.Playback.TicksPerStory,
		},
	}
}

func (f *Factory) NewSession(stories []domain.Story, viewerID string, callbacks Callbacks) *Session {
	return NewSession(f.deps, stories, viewerID, callbacks)
}

var Module = fx.Provide(NewFactory)
