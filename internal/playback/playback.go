package playback

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lumeapp/lume-stories/internal/repositories/story"
	"github.com/lumeapp/lume-stories/internal/seenstate"
	"github.com/lumeapp/lume-stories/pkg/logger"
)

// State is the top-level viewer state. Paused/Playing and Loading/Ready are
// orthogonal flags on the current item, not separate states.
type State int

const (
	StateIdle State = iota
	StateShowing
	StateClosed
)

// Dialog identifies the blocking overlay currently open, if any. Progress
// never ticks while a dialog is open.
type Dialog int

const (
	DialogNone Dialog = iota
	DialogViewers
	DialogDeleteConfirm
)

const maxProgress = 100.0

type Deps struct {
	StoryRepo     story.Repository
	SeenTracker   seenstate.Tracker
	Logger        logger.Logger
	Clock         clockwork.Clock
	TickInterval  time.Duration
	TicksPerStory int
}

// Callbacks notify the owner of session-level events. All callbacks fire
// outside the session lock and never after Close.
type Callbacks struct {
	// OnStorySeen fires after a story's view has been recorded so unseen
	// indicators can be refreshed.
	OnStorySeen func(storyID string)
	// OnClosed fires exactly once when the session reaches its terminal
	// state.
	OnClosed func()
	// OnError surfaces recoverable operation failures (delete, viewer
	// fetch). Playback resumes its prior state after each.
	OnError func(err error)
}
