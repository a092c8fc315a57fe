package composer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumeapp/lume-stories/internal/domain"
	"github.com/lumeapp/lume-stories/internal/mediastore"
	"github.com/lumeapp/lume-stories/internal/ratelimit"
	"github.com/lumeapp/lume-stories/internal/repositories/story"
	"github.com/lumeapp/lume-stories/pkg/config"
	"github.com/lumeapp/lume-stories/pkg/logger"
	"go.uber.org/fx"
)

type Mode string

const (
	ModePhoto Mode = "photo"
	ModeText  Mode = "text"
)

// Phase is the composer's tagged state. Exactly one phase holds at a time,
// which rules out the invalid flag combinations a pile of booleans invites.
type Phase int

const (
	PhaseSelecting Phase = iota
	PhaseEditing
	PhaseConfirmingDiscard
	PhaseClosed
)

var (
	ErrVideoTooLarge = errors.New("video exceeds the maximum size")
	ErrVideoTooLong  = errors.New("video exceeds the maximum duration")
	ErrImageTooLarge = errors.New("image exceeds the maximum size")
	ErrWrongPhase    = errors.New("operation not allowed in the current phase")
	ErrEmptyStory    = errors.New("story has no content")
	ErrRateLimited   = errors.New("too many stories, slow down")
)

const (
	mediaScaleMin   = 0.5
	mediaScaleMax   = 3.0
	overlayScaleMin = 0.3
	overlayScaleMax = 4.0
	baseFontSize    = 24.0
	jitterPercent   = 5.0
)

// MediaInfo describes a selected photo or video before any state change.
type MediaInfo struct {
	Type            domain.StoryType
	SizeBytes       int64
	DurationSeconds float64
	ContentType     string
	Content         io.Reader
}

// MediaTransform is the transient transform of the media layer: pixel
// offset from center, clamped scale, unbounded rotation.
type MediaTransform struct {
	Position domain.Position
	Scale    float64
	Rotation float64
}

// TextItem is one draft text overlay. X/Y are percentages of the
// container.
type TextItem struct {
	ID         string
	Value      string
	X          float64
	Y          float64
	Color      string
	FontFamily string
	BgColor    string
	FontSize   float64
	Scale      float64
	Rotation   float64
}

type textEdit struct {
	targetID string // empty while composing a brand-new overlay
	value    string
	color    string
	font     string
	bgColor  string
}

// ExportFunc renders the composed visual tree to a single raster blob.
// The engine consumes it as a black box.
type ExportFunc func(ctx context.Context) (io.Reader, int64, string, error)

type Opts struct {
	fx.In

	StoryRepo  story.Repository
	MediaStore mediastore.Store
	Limiter    ratelimit.Limiter
	Logger     logger.Logger
	Config     *config.Config
}

// Factory builds composition sessions with shared dependencies.
type Factory struct {
	StoryRepo  story.Repository
	MediaStore mediastore.Store
	Limiter    ratelimit.Limiter
	Logger     logger.Logger
	Config     *config.Config
}

func NewFactory(opts Opts) *Factory {
	return &Factory{
		StoryRepo:  opts.StoryRepo,
		MediaStore: opts.MediaStore,
		Limiter:    opts.Limiter,
		Logger:     opts.Logger.WithComponent("Composer"),
		Config:     opts.Config,
	}
}

var Module = fx.Provide(NewFactory)

// Session owns one in-progress story draft from open to submit or discard.
// No other component mutates the draft.
type Session struct {
	f        *Factory
	authorID string

	mu         sync.Mutex
	phase      Phase
	mode       Mode
	background string
	gradientID string

	media          *MediaInfo
	mediaTransform MediaTransform

	texts      []TextItem
	containerW float64
	containerH float64

	gesture        *gestureSession
	gestureOverlay string // overlay the active gesture is bound to; empty = media
	gestureActive  bool
	editing        *textEdit

	exportFn ExportFunc
	rng      *rand.Rand
}

func (f *Factory) NewSession(authorID string) *Session {
	return &Session{
		f:              f,
		authorID:       authorID,
		phase:          PhaseSelecting,
		mediaTransform: MediaTransform{Scale: 1},
		containerW:     1080,
		containerH:     1920,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) SetContainerSize(w, h float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w > 0 && h > 0 {
		s.containerW, s.containerH = w, h
	}
}

// UseExport installs the canvas-export collaborator. When present, photo
// submissions upload the flattened raster it produces.
func (s *Session) UseExport(fn ExportFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exportFn = fn
}

// SelectMedia validates the chosen file and, only if it passes, enters
// photo mode. A rejection leaves the composer exactly as it was.
func (s *Session) SelectMedia(info MediaInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseSelecting {
		return ErrWrongPhase
	}

	switch info.Type {
	case domain.StoryTypeVideo:
		if info.SizeBytes > s.f.Config.Media.MaxVideoBytes {
			return ErrVideoTooLarge
		}
		if info.DurationSeconds > float64(s.f.Config.Media.MaxVideoSeconds) {
			return ErrVideoTooLong
		}
	case domain.StoryTypeImage:
		if info.SizeBytes > s.f.Config.Media.MaxImageBytes {
			return ErrImageTooLarge
		}
	default:
		return fmt.Errorf("unsupported media type %q", info.Type)
	}

	s.mode = ModePhoto
	s.phase = PhaseEditing
	s.media = &info
	s.mediaTransform = MediaTransform{Scale: 1}
	return nil
}

// StartTextMode enters text mode over the given background and opens the
// editor for the single full-bleed overlay.
func (s *Session) StartTextMode(background, gradientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseSelecting {
		return ErrWrongPhase
	}

	s.mode = ModeText
	s.phase = PhaseEditing
	s.background = background
	s.gradientID = gradientID
	s.editing = &textEdit{color: "#ffffff"}
	return nil
}

func (s *Session) SetBackground(color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseEditing {
		s.background = color
	}
}

func (s *Session) SetBackgroundGradient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseEditing {
		s.gradientID = id
	}
}

// --- media layer gestures ---

// DragMediaBy pans the media layer by the pointer delta, in pixels. An
// active overlay gesture or open text editor suppresses it.
func (s *Session) DragMediaBy(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mediaGestureAllowed() {
		return
	}
	s.mediaTransform.Position.X += dx
	s.mediaTransform.Position.Y += dy
}

// BeginMediaGesture starts a two-finger transform of the media layer.
func (s *Session) BeginMediaGesture(a, b TouchPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mediaGestureAllowed() {
		return
	}
	s.gesture = newGestureSession(a, b, s.mediaTransform.Scale, s.mediaTransform.Rotation)
	s.gestureOverlay = ""
	s.gestureActive = true
}

func (s *Session) mediaGestureAllowed() bool {
	if s.phase != PhaseEditing || s.mode != ModePhoto || s.editing != nil {
		return false
	}
	// An overlay gesture in flight owns the touch stream.
	return !s.gestureActive || s.gestureOverlay == ""
}

// BeginOverlayGesture starts a two-finger transform bound to one overlay.
// The binding holds for the life of the contact.
func (s *Session) BeginOverlayGesture(overlayID string, a, b TouchPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEditing || s.editing != nil {
		return
	}
	if s.gestureActive && s.gestureOverlay == "" {
		return
	}
	item := s.findText(overlayID)
	if item == nil {
		return
	}
	s.gesture = newGestureSession(a, b, item.Scale, item.Rotation)
	s.gestureOverlay = overlayID
	s.gestureActive = true
}

// UpdateGesture applies the current finger positions to whichever target
// the active gesture bound at start.
func (s *Session) UpdateGesture(a, b TouchPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gestureActive || s.gesture == nil {
		return
	}

	if s.gestureOverlay == "" {
		scale, rotation := s.gesture.apply(a, b, mediaScaleMin, mediaScaleMax)
		s.mediaTransform.Scale = scale
		s.mediaTransform.Rotation = rotation
		return
	}

	item := s.findText(s.gestureOverlay)
	if item == nil {
		return
	}
	scale, rotation := s.gesture.apply(a, b, overlayScaleMin, overlayScaleMax)
	item.Scale = scale
	item.Rotation = rotation
}

// EndGesture discards the gesture session once the touch count drops
// below two.
func (s *Session) EndGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gesture = nil
	s.gestureOverlay = ""
	s.gestureActive = false
}

// DragOverlayBy moves one overlay by a pixel delta, stored as container
// percentages so the overlay stays anchored across resizes.
func (s *Session) DragOverlayBy(overlayID string, dxPx, dyPx float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEditing || s.editing != nil {
		return
	}
	if s.gestureActive && s.gestureOverlay != overlayID {
		return
	}
	item := s.findText(overlayID)
	if item == nil || s.containerW == 0 || s.containerH == 0 {
		return
	}
	item.X += dxPx / s.containerW * 100
	item.Y += dyPx / s.containerH * 100
}

func (s *Session) findText(id string) *TextItem {
	for i := range s.texts {
		if s.texts[i].ID == id {
			return &s.texts[i]
		}
	}
	return nil
}

// --- text editing subflow ---

// BeginTextEdit opens the caret-focused editor. All gesture handling is
// paused until the edit commits. An empty overlayID starts a new overlay.
func (s *Session) BeginTextEdit(overlayID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEditing {
		return ErrWrongPhase
	}

	s.gesture = nil
	s.gestureOverlay = ""
	s.gestureActive = false

	edit := &textEdit{color: "#ffffff"}
	if overlayID != "" {
		item := s.findText(overlayID)
		if item == nil {
			return fmt.Errorf("overlay %s not found", overlayID)
		}
		edit.targetID = item.ID
		edit.value = item.Value
		edit.color = item.Color
		edit.font = item.FontFamily
		edit.bgColor = item.BgColor
	}
	s.editing = edit
	return nil
}

func (s *Session) SetEditValue(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing != nil {
		s.editing.value = v
	}
}

func (s *Session) SetEditColor(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing != nil {
		s.editing.color = c
	}
}

func (s *Session) SetEditFont(f string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing != nil {
		s.editing.font = f
	}
}

func (s *Session) SetEditBackground(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing != nil {
		s.editing.bgColor = c
	}
}

// CommitTextEdit closes the editor. An empty value deletes the overlay
// being edited, or discards the new one. The returned id is empty when
// nothing survived the commit.
func (s *Session) CommitTextEdit() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing == nil {
		return "", ErrWrongPhase
	}
	edit := s.editing
	s.editing = nil

	if edit.value == "" {
		if edit.targetID != "" {
			s.removeText(edit.targetID)
		}
		return "", nil
	}

	if edit.targetID != "" {
		item := s.findText(edit.targetID)
		if item == nil {
			return "", fmt.Errorf("overlay %s not found", edit.targetID)
		}
		item.Value = edit.value
		item.Color = edit.color
		item.FontFamily = edit.font
		item.BgColor = edit.bgColor
		item.FontSize = baseFontSize * item.Scale
		return item.ID, nil
	}

	item := TextItem{
		ID:         uuid.NewString(),
		Value:      edit.value,
		Color:      edit.color,
		FontFamily: edit.font,
		BgColor:    edit.bgColor,
		Scale:      1,
		FontSize:   baseFontSize,
	}
	if s.mode == ModeText {
		// The single full-bleed overlay sits dead center.
		item.X, item.Y = 50, 50
	} else {
		// Jitter keeps consecutively added overlays from stacking.
		item.X = 50 + (s.rng.Float64()*2-1)*jitterPercent
		item.Y = 50 + (s.rng.Float64()*2-1)*jitterPercent
	}
	s.texts = append(s.texts, item)
	return item.ID, nil
}

func (s *Session) removeText(id string) {
	for i := range s.texts {
		if s.texts[i].ID == id {
			s.texts = append(s.texts[:i], s.texts[i+1:]...)
			return
		}
	}
}

// TextModeFontSize recomputes the full-bleed overlay's display size for
// the current value.
func (s *Session) TextModeFontSize(measure MeasureFunc) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := ""
	if s.editing != nil {
		text = s.editing.value
	} else if len(s.texts) > 0 {
		text = s.texts[0].Value
	}
	return FitFontSize(text, s.containerH, measure)
}

// --- lifecycle ---

// Dirty reports whether the draft has anything worth confirming before a
// discard.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Session) dirtyLocked() bool {
	if s.media != nil {
		return true
	}
	for _, t := range s.texts {
		if t.Value != "" {
			return true
		}
	}
	return s.editing != nil && s.editing.value != ""
}

// RequestDiscard closes immediately when the draft is empty; otherwise it
// asks for confirmation first. Returns true when the session closed.
func (s *Session) RequestDiscard() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return true
	}
	if !s.dirtyLocked() {
		s.resetLocked()
		return true
	}
	s.phase = PhaseConfirmingDiscard
	return false
}

func (s *Session) ConfirmDiscard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseConfirmingDiscard {
		s.resetLocked()
	}
}

func (s *Session) CancelDiscard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseConfirmingDiscard {
		s.phase = PhaseEditing
	}
}

func (s *Session) resetLocked() {
	s.phase = PhaseClosed
	s.mode = ""
	s.media = nil
	s.texts = nil
	s.editing = nil
	s.gesture = nil
	s.gestureOverlay = ""
	s.gestureActive = false
	s.background = ""
	s.gradientID = ""
	s.mediaTransform = MediaTransform{Scale: 1}
}

// Texts returns a copy of the current overlay drafts.
func (s *Session) Texts() []TextItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TextItem, len(s.texts))
	copy(out, s.texts)
	return out
}

func (s *Session) Transform() MediaTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediaTransform
}

// Submit converts the draft to the persisted overlays shape and creates
// the story. On failure the draft is kept intact for retry.
func (s *Session) Submit(ctx context.Context, caption string) (*domain.Story, error) {
	s.mu.Lock()
	if s.phase != PhaseEditing {
		s.mu.Unlock()
		return nil, ErrWrongPhase
	}
	if s.mode == ModeText && len(s.texts) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyStory
	}
	st := s.buildStoryLocked(caption)
	mode := s.mode
	media := s.media
	exportFn := s.exportFn
	s.mu.Unlock()

	if !s.f.Limiter.Allow(s.authorID) {
		return nil, ErrRateLimited
	}

	if mode == ModePhoto {
		url, err := s.uploadMedia(ctx, st.ID, media, exportFn)
		if err != nil {
			return nil, fmt.Errorf("failed to upload story media: %w", err)
		}
		st.MediaURL = url
	}

	if err := s.f.StoryRepo.Create(ctx, st); err != nil {
		s.f.Logger.Error("Failed to create story", "author_id", s.authorID, "error", err)
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	s.f.Logger.Info("Story created", "story_id", st.ID, "author_id", s.authorID, "type", st.StoryType)
	return &st, nil
}

func (s *Session) uploadMedia(ctx context.Context, storyID string, media *MediaInfo, exportFn ExportFunc) (string, error) {
	if exportFn != nil && media.Type == domain.StoryTypeImage {
		// Flattened raster from the canvas exporter, overlays baked in.
		reader, size, contentType, err := exportFn(ctx)
		if err != nil {
			return "", fmt.Errorf("canvas export failed: %w", err)
		}
		return s.f.MediaStore.Put(ctx, storyID+"-export", reader, size, contentType)
	}
	return s.f.MediaStore.Put(ctx, storyID, media.Content, media.SizeBytes, media.ContentType)
}
