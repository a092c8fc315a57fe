package composer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lumeapp/lume-stories/internal/domain"
	"github.com/lumeapp/lume-stories/internal/ratelimit"
	"github.com/lumeapp/lume-stories/pkg/config"
	"github.com/lumeapp/lume-stories/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	created   []domain.Story
	createErr error
}

func (f *fakeRepo) Create(_ context.Context, st domain.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, st)
	return nil
}

func (f *fakeRepo) GetByID(context.Context, string) (*domain.Story, error) { return nil, nil }
func (f *fakeRepo) ListActiveByAuthors(context.Context, []string, time.Time) ([]domain.Story, error) {
	return nil, nil
}
func (f *fakeRepo) RecordView(context.Context, string, string) error { return nil }
func (f *fakeRepo) ListViewers(context.Context, string) ([]domain.StoryView, error) {
	return nil, nil
}
func (f *fakeRepo) ListViewedStoryIDs(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakeRepo) Delete(context.Context, string) error                         { return nil }
func (f *fakeRepo) DeleteExpired(context.Context, time.Time) (int64, error)      { return 0, nil }

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]int64
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]int64)}
}

func (f *fakeStore) Put(_ context.Context, objectName string, _ io.Reader, size int64, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.objects[objectName] = size
	return "https://media.test/story-media/" + objectName, nil
}

func (f *fakeStore) Remove(_ context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectName)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Media.MaxVideoBytes = 60 << 20
	cfg.Media.MaxVideoSeconds = 120
	cfg.Media.MaxImageBytes = 30 << 20
	cfg.Story.TTL = 24 * time.Hour
	return cfg
}

func newTestFactory(repo *fakeRepo, store *fakeStore) *Factory {
	return &Factory{
		StoryRepo:  repo,
		MediaStore: store,
		Limiter:    ratelimit.NewInMemoryLimiter(100, time.Second, 100),
		Logger:     logger.New(logger.Opts{}),
		Config:     testConfig(),
	}
}

func imageInfo(size int64) MediaInfo {
	return MediaInfo{
		Type:        domain.StoryTypeImage,
		SizeBytes:   size,
		ContentType: "image/jpeg",
		Content:     bytes.NewReader([]byte("img")),
	}
}

func TestOversizedVideoRejectedBeforeAnyStateChange(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")

	err := s.SelectMedia(MediaInfo{
		Type:            domain.StoryTypeVideo,
		SizeBytes:       70 << 20,
		DurationSeconds: 30,
	})
	require.ErrorIs(t, err, ErrVideoTooLarge)

	// The composer stays in its pre-selection state and other modes
	// remain available.
	assert.Equal(t, PhaseSelecting, s.Phase())
	assert.Equal(t, Mode(""), s.Mode())
	assert.False(t, s.Dirty())
	assert.NoError(t, s.StartTextMode("#000000", ""))
}

func TestTooLongVideoRejected(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")

	err := s.SelectMedia(MediaInfo{
		Type:            domain.StoryTypeVideo,
		SizeBytes:       10 << 20,
		DurationSeconds: 121,
	})
	assert.ErrorIs(t, err, ErrVideoTooLong)
	assert.Equal(t, PhaseSelecting, s.Phase())
}

func TestOversizedImageRejected(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")

	err := s.SelectMedia(imageInfo(31 << 20))
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Equal(t, PhaseSelecting, s.Phase())
}

func TestTextStorySubmitPayload(t *testing.T) {
	repo := &fakeRepo{}
	f := newTestFactory(repo, newFakeStore())
	s := f.NewSession("author-1")

	require.NoError(t, s.StartTextMode("G1", ""))
	s.SetEditValue("Hello")
	id, err := s.CommitTextEdit()
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st, err := s.Submit(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, domain.StoryTypeText, st.StoryType)
	assert.Equal(t, "", st.MediaURL)
	assert.Equal(t, "G1", st.Overlays.BackgroundColor)
	assert.Nil(t, st.Overlays.Media, "text stories carry no media block")
	require.Len(t, st.Overlays.Texts, 1)
	assert.Equal(t, "Hello", st.Overlays.Texts[0].Text)
	assert.WithinDuration(t, st.CreatedAt.Add(24*time.Hour), st.ExpiresAt, time.Second)

	require.Len(t, repo.created, 1)
	assert.Equal(t, st.ID, repo.created[0].ID)
	assert.Equal(t, PhaseClosed, s.Phase(), "draft discarded after successful submit")
}

func TestPhotoSubmitUploadsMediaAndBuildsMediaBlock(t *testing.T) {
	repo := &fakeRepo{}
	store := newFakeStore()
	f := newTestFactory(repo, store)
	s := f.NewSession("author-1")
	s.SetContainerSize(400, 800)

	require.NoError(t, s.SelectMedia(imageInfo(1<<20)))
	s.DragMediaBy(12, -30)

	st, err := s.Submit(context.Background(), "a caption")
	require.NoError(t, err)

	assert.Equal(t, domain.StoryTypeImage, st.StoryType)
	assert.True(t, strings.HasPrefix(st.MediaURL, "https://media.test/"), st.MediaURL)
	require.NotNil(t, st.Overlays.Media)
	assert.Equal(t, domain.StoryTypeImage, st.Overlays.Media.Type)
	assert.Equal(t, 12.0, st.Overlays.Media.Position.X)
	assert.Equal(t, -30.0, st.Overlays.Media.Position.Y)
	assert.Equal(t, domain.Size{Width: 400, Height: 800}, st.Overlays.Media.Size)
	assert.Equal(t, "a caption", st.Caption)
	assert.Len(t, store.objects, 1)
}

func TestSubmitFailureKeepsDraftForRetry(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("db down")}
	f := newTestFactory(repo, newFakeStore())
	s := f.NewSession("author-1")

	require.NoError(t, s.StartTextMode("#111111", ""))
	s.SetEditValue("keep me")
	_, err := s.CommitTextEdit()
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, PhaseEditing, s.Phase())
	require.Len(t, s.Texts(), 1)
	assert.Equal(t, "keep me", s.Texts()[0].Value)

	repo.mu.Lock()
	repo.createErr = nil
	repo.mu.Unlock()

	_, err = s.Submit(context.Background(), "")
	assert.NoError(t, err)
}

func TestSubmitRateLimited(t *testing.T) {
	repo := &fakeRepo{}
	f := newTestFactory(repo, newFakeStore())
	f.Limiter = ratelimit.NewInMemoryLimiter(1, time.Hour, 1)

	for i, wantErr := range []error{nil, ErrRateLimited} {
		s := f.NewSession("author-1")
		require.NoError(t, s.StartTextMode("#000", ""))
		s.SetEditValue("hello")
		_, err := s.CommitTextEdit()
		require.NoError(t, err)

		_, err = s.Submit(context.Background(), "")
		if wantErr == nil {
			assert.NoError(t, err, "submit %d", i)
		} else {
			assert.ErrorIs(t, err, wantErr, "submit %d", i)
		}
	}
}

func TestOverlayTransformsAreIndependent(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")
	s.SetContainerSize(1000, 1000)
	require.NoError(t, s.SelectMedia(imageInfo(1<<20)))

	idA := addOverlay(t, s, "first")
	idB := addOverlay(t, s, "second")

	before := findItem(t, s, idB)

	// Pinch overlay A wide open and drag it around.
	s.BeginOverlayGesture(idA, TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0})
	s.UpdateGesture(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 30, Y: 0})
	s.EndGesture()
	s.DragOverlayBy(idA, 100, 100)

	a := findItem(t, s, idA)
	assert.InDelta(t, 3.0, a.Scale, 1e-9)

	after := findItem(t, s, idB)
	assert.Equal(t, before.X, after.X)
	assert.Equal(t, before.Y, after.Y)
	assert.Equal(t, before.Scale, after.Scale)
	assert.Equal(t, before.Rotation, after.Rotation)
}

func TestOverlayGestureSuppressesMediaGesture(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")
	require.NoError(t, s.SelectMedia(imageInfo(1<<20)))

	id := addOverlay(t, s, "hello")

	s.BeginOverlayGesture(id, TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0})

	// The media layer must ignore input while the overlay owns the
	// touch stream.
	s.DragMediaBy(50, 50)
	s.BeginMediaGesture(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0})
	s.UpdateGesture(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 20, Y: 0})

	tr := s.Transform()
	assert.Equal(t, 0.0, tr.Position.X)
	assert.Equal(t, 0.0, tr.Position.Y)
	assert.Equal(t, 1.0, tr.Scale)

	s.EndGesture()
	s.DragMediaBy(50, 50)
	assert.Equal(t, 50.0, s.Transform().Position.X)
}

func TestCommitEmptyValueDeletesOverlay(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")
	require.NoError(t, s.SelectMedia(imageInfo(1<<20)))

	id := addOverlay(t, s, "temporary")
	require.Len(t, s.Texts(), 1)

	require.NoError(t, s.BeginTextEdit(id))
	s.SetEditValue("")
	got, err := s.CommitTextEdit()
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, s.Texts())
}

func TestFontSizeScalesWithOverlayScale(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")
	require.NoError(t, s.SelectMedia(imageInfo(1<<20)))

	id := addOverlay(t, s, "zoom me")

	s.BeginOverlayGesture(id, TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0})
	s.UpdateGesture(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 20, Y: 0})
	s.EndGesture()

	// Re-committing the edit bakes fontSize = base x scale.
	require.NoError(t, s.BeginTextEdit(id))
	s.SetEditValue("zoom me")
	_, err := s.CommitTextEdit()
	require.NoError(t, err)

	item := findItem(t, s, id)
	assert.InDelta(t, baseFontSize*2, item.FontSize, 1e-9)
}

func TestNewOverlaysJitterAroundCenter(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")
	require.NoError(t, s.SelectMedia(imageInfo(1<<20)))

	for i := 0; i < 20; i++ {
		id := addOverlay(t, s, "jitter")
		item := findItem(t, s, id)
		assert.GreaterOrEqual(t, item.X, 45.0)
		assert.LessOrEqual(t, item.X, 55.0)
		assert.GreaterOrEqual(t, item.Y, 45.0)
		assert.LessOrEqual(t, item.Y, 55.0)
	}
}

func TestDiscardRequiresConfirmationOnceDirty(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())

	// An empty draft discards straight away.
	s := f.NewSession("author-1")
	require.NoError(t, s.StartTextMode("#000", ""))
	assert.True(t, s.RequestDiscard())
	assert.Equal(t, PhaseClosed, s.Phase())

	// A dirty draft needs the interstitial.
	s = f.NewSession("author-1")
	require.NoError(t, s.StartTextMode("#000", ""))
	s.SetEditValue("unsaved")
	_, err := s.CommitTextEdit()
	require.NoError(t, err)

	assert.False(t, s.RequestDiscard())
	assert.Equal(t, PhaseConfirmingDiscard, s.Phase())

	s.CancelDiscard()
	assert.Equal(t, PhaseEditing, s.Phase())
	require.Len(t, s.Texts(), 1)

	assert.False(t, s.RequestDiscard())
	s.ConfirmDiscard()
	assert.Equal(t, PhaseClosed, s.Phase())
	assert.Empty(t, s.Texts())
}

func TestTextEditPausesGestures(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")
	require.NoError(t, s.SelectMedia(imageInfo(1<<20)))

	require.NoError(t, s.BeginTextEdit(""))
	s.DragMediaBy(10, 10)
	s.BeginMediaGesture(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 10, Y: 0})
	s.UpdateGesture(TouchPoint{X: 0, Y: 0}, TouchPoint{X: 20, Y: 0})

	tr := s.Transform()
	assert.Equal(t, 0.0, tr.Position.X)
	assert.Equal(t, 1.0, tr.Scale)
}

func TestExportedRasterUsedForImageSubmit(t *testing.T) {
	repo := &fakeRepo{}
	store := newFakeStore()
	f := newTestFactory(repo, store)
	s := f.NewSession("author-1")

	require.NoError(t, s.SelectMedia(imageInfo(1<<20)))
	s.UseExport(func(context.Context) (io.Reader, int64, string, error) {
		return bytes.NewReader([]byte("raster")), 6, "image/png", nil
	})

	st, err := s.Submit(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, st.MediaURL, "-export")
}

func TestSubmitEmptyTextStoryRejected(t *testing.T) {
	f := newTestFactory(&fakeRepo{}, newFakeStore())
	s := f.NewSession("author-1")
	require.NoError(t, s.StartTextMode("#000", ""))

	_, err := s.Submit(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyStory)
}

func addOverlay(t *testing.T, s *Session, value string) string {
	t.Helper()
	require.NoError(t, s.BeginTextEdit(""))
	s.SetEditValue(value)
	id, err := s.CommitTextEdit()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func findItem(t *testing.T, s *Session, id string) TextItem {
	t.Helper()
	for _, item := range s.Texts() {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("overlay %s not found", id)
	return TextItem{}
}
