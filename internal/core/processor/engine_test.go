package processor

import (
	"context"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hoopsight/config"
	"hoopsight/internal/core/models"
	"hoopsight/internal/core/session"
	"hoopsight/internal/db"
	"hoopsight/internal/db/repository"

	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	mu    sync.Mutex
	faces [][]float32
}

func (f *fakeExtractor) Extract(ctx context.Context, img image.Image) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faces, nil
}

func (f *fakeExtractor) set(faces ...[]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces = faces
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PlayerEvent
}

func (r *recordingPublisher) PublishEvent(event models.PlayerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newTestEngine(t *testing.T, ext *fakeExtractor) (*Engine, *recordingPublisher) {
	t.Helper()
	conn, err := db.Open(config.DBConfig{File: filepath.Join(t.TempDir(), "profiles.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })

	pub := &recordingPublisher{}
	e := NewEngine(repository.NewSQLiteRepository(conn), ext, nil, Options{
		Provider:         "fake",
		Tolerance:        0.6,
		ThrottleInterval: 30,
		Workers:          2,
	}, pub)
	t.Cleanup(e.Shutdown)
	require.NoError(t, e.Reload(context.Background()))
	return e, pub
}

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestEnrollThenIdentify(t *testing.T) {
	ext := &fakeExtractor{}
	e, pub := newTestEngine(t, ext)
	ctx := context.Background()

	ext.set([]float32{0.1, 0.2, 0.3})
	name, err := e.Enroll(ctx, "  Jane Doe!", frame())
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", name)
	require.Equal(t, []string{"Jane Doe"}, e.Profiles())

	sess, done := e.NewSession()
	defer done()
	require.EqualValues(t, 1, e.ActiveSessions())

	ext.set([]float32{0.1, 0.2, 0.35})
	res, err := e.Process(ctx, sess, frame(), session.DefaultSettings())
	require.NoError(t, err)
	require.NotNil(t, res.Player)
	require.Equal(t, "Jane Doe", *res.Player)
	require.Equal(t, models.StatusIdentified, res.Status)
	require.Empty(t, res.Keypoints)

	require.Eventually(t, func() bool {
		return len(pub.types()) == 2
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, []string{models.EventEnrolled, models.EventIdentified}, pub.types())
	require.EqualValues(t, 1, e.Pool().ProcessedCount())
}

func TestEnrollWithoutFace(t *testing.T) {
	e, _ := newTestEngine(t, &fakeExtractor{})
	_, err := e.Enroll(context.Background(), "Jane", frame())
	require.ErrorIs(t, err, ErrNoFaceDetected)
	require.Empty(t, e.Profiles())
}

func TestEnrollRejectsEmptyName(t *testing.T) {
	e, _ := newTestEngine(t, &fakeExtractor{faces: [][]float32{{1}}})
	_, err := e.Enroll(context.Background(), "!!!", frame())
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestEnrollRejectsDimensionMismatch(t *testing.T) {
	ext := &fakeExtractor{faces: [][]float32{{1, 2}}}
	e, _ := newTestEngine(t, ext)
	_, err := e.Enroll(context.Background(), "A", frame())
	require.NoError(t, err)

	ext.set([]float32{1, 2, 3})
	_, err = e.Enroll(context.Background(), "B", frame())
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReEnrollKeepsGalleryPosition(t *testing.T) {
	ext := &fakeExtractor{}
	e, _ := newTestEngine(t, ext)
	ctx := context.Background()

	ext.set([]float32{1, 0})
	_, err := e.Enroll(ctx, "A", frame())
	require.NoError(t, err)
	ext.set([]float32{0, 1})
	_, err = e.Enroll(ctx, "B", frame())
	require.NoError(t, err)
	ext.set([]float32{5, 5})
	_, err = e.Enroll(ctx, "A", frame())
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B"}, e.Profiles())

	// Das alte Embedding von A passt nicht mehr
	sess, done := e.NewSession()
	defer done()
	ext.set([]float32{1, 0})
	res, err := e.Process(ctx, sess, frame(), session.DefaultSettings())
	require.NoError(t, err)
	require.Nil(t, res.Player)
	require.Equal(t, models.StatusSearching, res.Status)
}

func TestDeleteProfile(t *testing.T) {
	ext := &fakeExtractor{faces: [][]float32{{1, 0}}}
	e, pub := newTestEngine(t, ext)
	ctx := context.Background()

	_, err := e.Enroll(ctx, "Jane Doe", frame())
	require.NoError(t, err)
	require.NoError(t, e.DeleteProfile(ctx, "Jane Doe"))
	require.Empty(t, e.Profiles())
	require.ErrorIs(t, e.DeleteProfile(ctx, "Jane Doe"), repository.ErrProfileNotFound)
	require.Eventually(t, func() bool {
		return len(pub.types()) == 2
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, []string{models.EventEnrolled, models.EventDeleted}, pub.types())
}

type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	players []string
}

func (b *blockingPublisher) PublishEvent(event models.PlayerEvent) {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.players = append(b.players, event.Player)
}

func (b *blockingPublisher) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.players)
}

func TestSlowPublisherDoesNotStallFrames(t *testing.T) {
	ext := &fakeExtractor{faces: [][]float32{{0.1, 0.2}}}
	e, _ := newTestEngine(t, ext)
	ctx := context.Background()

	slow := &blockingPublisher{release: make(chan struct{})}
	e.AddPublisher(slow)

	_, err := e.Enroll(ctx, "Jane Doe", frame())
	require.NoError(t, err)

	sess, done := e.NewSession()
	defer done()

	start := time.Now()
	res, err := e.Process(ctx, sess, frame(), session.DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, models.StatusIdentified, res.Status)
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Zero(t, slow.count())

	close(slow.release)
	require.Eventually(t, func() bool {
		return slow.count() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestShutdownFlushesQueuedEvents(t *testing.T) {
	ext := &fakeExtractor{faces: [][]float32{{1, 0}}}
	e, pub := newTestEngine(t, ext)

	_, err := e.Enroll(context.Background(), "Jane Doe", frame())
	require.NoError(t, err)

	e.Shutdown()
	require.Equal(t, []string{models.EventEnrolled}, pub.types())

	// Nach dem Herunterfahren wird nichts mehr zugestellt
	e.publish(models.PlayerEvent{Type: models.EventDeleted, Player: "Jane Doe"})
	require.Equal(t, []string{models.EventEnrolled}, pub.types())
}
