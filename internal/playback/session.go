package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lumeapp/lume-stories/internal/domain"
	storyRepo "github.com/lumeapp/lume-stories/internal/repositories/story"
	"github.com/lumeapp/lume-stories/pkg/retry"
)

var ErrNotAuthor = errors.New("operation allowed for the story author only")

// Session plays one flattened story list for one viewer. It owns the
// current index, the progress timer and the once-per-session view
// bookkeeping, and discards all of it on Close.
type Session struct {
	deps      Deps
	callbacks Callbacks

	viewerID string
	stories  []domain.Story

	mu         sync.Mutex
	state      State
	index      int
	progress   float64
	holdPaused bool
	mediaReady bool
	muted      bool
	dialog     Dialog
	viewers    []domain.StoryView
	recorded   map[string]struct{}
	// rewindTicks holds the cosmetic full-progress beat after a Prev
	// transition before progress resets to zero.
	rewindTicks int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(deps Deps, stories []domain.Story, viewerID string, callbacks Callbacks) *Session {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		deps:      deps,
		callbacks: callbacks,
		viewerID:  viewerID,
		stories:   stories,
		state:     StateIdle,
		recorded:  make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start enters the story at startIndex and begins ticking. A session can be
// started once; reopening requires a fresh session.
func (s *Session) Start(startIndex int) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	if startIndex < 0 || startIndex >= len(s.stories) {
		s.mu.Unlock()
		return fmt.Errorf("start index %d out of range", startIndex)
	}
	s.state = StateShowing
	s.enterLocked(startIndex, false)
	s.mu.Unlock()

	go s.run()
	return nil
}

func (s *Session) run() {
	ticker := s.deps.Clock.NewTicker(s.deps.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.tick()
		}
	}
}

// tick advances the synthetic progress counter for image and text stories.
// Video stories are driven by SetVideoProgress/VideoEnded instead.
func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateShowing {
		return
	}

	if s.rewindTicks > 0 {
		s.rewindTicks--
		if s.rewindTicks == 0 {
			s.progress = 0
		}
		return
	}

	current := s.stories[s.index]
	if current.StoryType == domain.StoryTypeVideo {
		return
	}
	if s.holdPaused || !s.mediaReady || s.dialog != DialogNone {
		return
	}

	s.progress += maxProgress / float64(s.deps.TicksPerStory)
	if s.progress >= maxProgress {
		s.progress = maxProgress
		s.advanceLocked()
	}
}

// Next moves forward, closing the session past the last index.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateShowing {
		return
	}
	s.advanceLocked()
}

func (s *Session) advanceLocked() {
	if s.index >= len(s.stories)-1 {
		s.closeLocked()
		return
	}
	s.enterLocked(s.index+1, false)
}

// Previous moves back one story. At index zero it is a no-op. The entered
// story briefly shows full progress before resetting, so the transition
// reads as the predecessor completing rather than an abrupt restart.
func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateShowing || s.index == 0 {
		return
	}
	s.enterLocked(s.index-1, true)
}

func (s *Session) enterLocked(i int, viaPrev bool) {
	s.index = i
	s.dialog = DialogNone
	s.viewers = nil

	current := s.stories[i]
	// Text stories have nothing to load; media stories report readiness
	// through SetMediaReady. Videos restart muted on every entry.
	s.mediaReady = current.StoryType == domain.StoryTypeText
	s.muted = true

	if viaPrev {
		s.progress = maxProgress
		s.rewindTicks = 1
	} else {
		s.progress = 0
		s.rewindTicks = 0
	}

	s.recordViewLocked(current)
}

// recordViewLocked issues the view-record side effects at most once per
// story per session, and never for the viewer's own stories.
func (s *Session) recordViewLocked(current domain.Story) {
	if current.AuthorID == s.viewerID {
		return
	}
	if _, ok := s.recorded[current.ID]; ok {
		return
	}
	s.recorded[current.ID] = struct{}{}

	storyID := current.ID
	go func() {
		// The record call is detached from the session lifetime: closing
		// the viewer must not lose a view already being reported. Only
		// the caller notification is fenced by the closed state.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := retry.Do(ctx, s.deps.Logger, "record view", func() error {
			return s.deps.StoryRepo.RecordView(ctx, storyID, s.viewerID)
		}, retry.DefaultConfig())
		if err != nil {
			// Best effort: the data layer is idempotent and the next
			// session will retry naturally.
			s.deps.Logger.Warn("Failed to record story view", "story_id", storyID, "error", err)
			return
		}

		s.deps.SeenTracker.MarkSeen(ctx, s.viewerID, storyID)

		s.mu.Lock()
		closed := s.state == StateClosed
		s.mu.Unlock()
		if !closed && s.callbacks.OnStorySeen != nil {
			s.callbacks.OnStorySeen(storyID)
		}
	}()
}

// SetMediaReady marks the current story's media as loaded. Stale signals
// for a story no longer showing are dropped.
func (s *Session) SetMediaReady(storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateShowing || s.stories[s.index].ID != storyID {
		return
	}
	s.mediaReady = true
}

// SetVideoProgress binds the native playback-position ratio (0..1) of the
// current video to the progress bar.
func (s *Session) SetVideoProgress(storyID string, ratio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateShowing {
		return
	}
	current := s.stories[s.index]
	if current.ID != storyID || current.StoryType != domain.StoryTypeVideo {
		return
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	s.progress = ratio * maxProgress
}

// VideoEnded advances past the current video story.
func (s *Session) VideoEnded(storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateShowing {
		return
	}
	current := s.stories[s.index]
	if current.ID != storyID || current.StoryType != domain.StoryTypeVideo {
		return
	}
	s.advanceLocked()
}

func (s *Session) ToggleMute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = !s.muted
}

// HoldStart pauses playback for the duration of a press-and-hold. Progress
// is kept, not reset.
func (s *Session) HoldStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdPaused = true
}

func (s *Session) HoldEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdPaused = false
}

// OpenViewers fetches and exposes the viewer list for the current story.
// Author only; playback stays paused while the list is open.
func (s *Session) OpenViewers() error {
	s.mu.Lock()
	if s.state != StateShowing {
		s.mu.Unlock()
		return nil
	}
	current := s.stories[s.index]
	if current.AuthorID != s.viewerID {
		s.mu.Unlock()
		return ErrNotAuthor
	}
	s.dialog = DialogViewers
	s.mu.Unlock()

	go func() {
		viewers, err := s.deps.StoryRepo.ListViewers(s.ctx, current.ID)

		s.mu.Lock()
		// Stale guard: the dialog may have closed or the story changed
		// while the fetch was in flight.
		stale := s.state != StateShowing || s.dialog != DialogViewers || s.stories[s.index].ID != current.ID
		if !stale && err == nil {
			s.viewers = viewers
		}
		s.mu.Unlock()

		if err != nil && !stale {
			s.deps.Logger.Error("Failed to fetch story viewers", "story_id", current.ID, "error", err)
			s.notifyError(fmt.Errorf("failed to fetch viewers: %w", err))
		}
	}()

	return nil
}

func (s *Session) CloseViewers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialog == DialogViewers {
		s.dialog = DialogNone
		s.viewers = nil
	}
}

// RequestDelete opens the delete confirmation for the current story,
// pausing playback. Author only.
func (s *Session) RequestDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateShowing {
		return nil
	}
	if s.stories[s.index].AuthorID != s.viewerID {
		return ErrNotAuthor
	}
	s.dialog = DialogDeleteConfirm
	return nil
}

func (s *Session) CancelDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialog == DialogDeleteConfirm {
		s.dialog = DialogNone
	}
}

// ConfirmDelete deletes the current story and closes the whole viewer. On
// failure playback resumes without closing.
func (s *Session) ConfirmDelete() {
	s.mu.Lock()
	if s.state != StateShowing || s.dialog != DialogDeleteConfirm {
		s.mu.Unlock()
		return
	}
	current := s.stories[s.index]
	s.mu.Unlock()

	go func() {
		err := s.deps.StoryRepo.Delete(s.ctx, current.ID)

		s.mu.Lock()
		if s.state != StateShowing {
			s.mu.Unlock()
			return
		}
		if err != nil && !errors.Is(err, storyRepo.ErrNotFound) {
			s.dialog = DialogNone
			s.mu.Unlock()
			s.deps.Logger.Error("Failed to delete story", "story_id", current.ID, "error", err)
			s.notifyError(fmt.Errorf("failed to delete story: %w", err))
			return
		}
		// Already-gone counts as deleted.
		s.closeLocked()
		s.mu.Unlock()
	}()
}

// Close is the only terminal transition. It cancels the ticker and fences
// off any in-flight responses.
func (s *Session) Close() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
}

func (s *Session) closeLocked() {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.cancel()
	close(s.done)

	if s.callbacks.OnClosed != nil {
		go s.callbacks.OnClosed()
	}
}

func (s *Session) notifyError(err error) {
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(err)
	}
}

// Done is closed when the session reaches its terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Session) CurrentStory() domain.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stories[s.index]
}

func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdPaused || s.dialog != DialogNone
}

func (s *Session) OpenDialog() Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialog
}

func (s *Session) Viewers() []domain.StoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewers
}

func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}
