package session

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"testing"

	"hoopsight/internal/core/biomech"
	"hoopsight/internal/core/gallery"
	"hoopsight/internal/core/identifier"
	"hoopsight/internal/core/models"

	"github.com/stretchr/testify/require"
)

// scriptedIdentifier liefert nacheinander die vorgegebenen Namen ("" = kein Treffer)
type scriptedIdentifier struct {
	names []string
	err   error
	calls int
}

func (s *scriptedIdentifier) Identify(ctx context.Context, img image.Image) (string, bool, error) {
	s.calls++
	if s.err != nil {
		return "", false, s.err
	}
	name := s.names[(s.calls-1)%len(s.names)]
	return name, name != "", nil
}

type fixedPose struct {
	pose  models.PoseResult
	err   error
	calls int
}

func (f *fixedPose) Estimate(ctx context.Context, img image.Image) (models.PoseResult, error) {
	f.calls++
	return f.pose, f.err
}

type fixedExtractor [][]float32

func (f fixedExtractor) Extract(ctx context.Context, img image.Image) ([][]float32, error) {
	return f, nil
}

type snapshot struct{ g *gallery.Gallery }

func (s snapshot) Snapshot() *gallery.Gallery { return s.g }

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func rightAnglePose() models.PoseResult {
	pose := make(models.PoseResult, models.KeypointCount)
	for i := range pose {
		pose[i] = models.Keypoint{X: 1, Y: 1, Confidence: 1}
	}
	pose[models.RightShoulder] = models.Keypoint{X: 100, Y: 100, Confidence: 1}
	pose[models.RightElbow] = models.Keypoint{X: 100, Y: 200, Confidence: 1}
	pose[models.RightWrist] = models.Keypoint{X: 200, Y: 200, Confidence: 1}
	return pose
}

func TestInitialState(t *testing.T) {
	s := New("s1", &scriptedIdentifier{names: []string{""}}, nil, Options{})
	require.Equal(t, uint64(0), s.FrameCount())
	require.Equal(t, "s1", s.ID())

	res, err := s.Process(context.Background(), frame(), Settings{Face: true})
	require.NoError(t, err)
	require.Nil(t, res.Player)
	require.Equal(t, models.StatusSearching, res.Status)
	require.Equal(t, uint64(1), s.FrameCount())
}

func TestThrottleStability(t *testing.T) {
	// Nach der Identifikation in Frame 0 würde der Identifier "Other" liefern
	ident := &scriptedIdentifier{names: []string{"Jane Doe", "Other"}}
	s := New("s1", ident, nil, Options{ThrottleInterval: 30})

	first, err := s.Process(context.Background(), frame(), DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", *first.Player)

	for i := 0; i < 29; i++ {
		res, err := s.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, i+1, i+1)), DefaultSettings())
		require.NoError(t, err)
		require.Equal(t, first.Player, res.Player)
		require.Equal(t, first.Status, res.Status)
	}
	require.Equal(t, 1, ident.calls)

	// Frame 30 identifiziert erneut
	res, err := s.Process(context.Background(), frame(), DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, 2, ident.calls)
	require.Equal(t, "Other", *res.Player)
}

func TestFaceDisabledReportsNA(t *testing.T) {
	ident := &scriptedIdentifier{names: []string{"Jane Doe"}}
	s := New("s1", ident, nil, Options{ThrottleInterval: 1})

	res, err := s.Process(context.Background(), frame(), Settings{Face: false, Pose: false})
	require.NoError(t, err)
	require.Nil(t, res.Player)
	require.Equal(t, models.StatusDisabled, res.Status)
	require.Zero(t, ident.calls)
	require.Equal(t, uint64(1), s.FrameCount())
}

func TestExtractorFailureKeepsCachedState(t *testing.T) {
	ident := &scriptedIdentifier{names: []string{"Jane Doe"}}
	s := New("s1", ident, nil, Options{ThrottleInterval: 1})

	_, err := s.Process(context.Background(), frame(), DefaultSettings())
	require.NoError(t, err)

	ident.err = errors.New("service down")
	res, err := s.Process(context.Background(), frame(), DefaultSettings())
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, StageFace, fe.Stage)
	require.False(t, IsFatal(err))
	require.Equal(t, "Jane Doe", *res.Player)
	require.Equal(t, models.StatusIdentified, res.Status)
}

func TestPoseIsNotThrottled(t *testing.T) {
	pose := &fixedPose{pose: rightAnglePose()}
	s := New("s1", &scriptedIdentifier{names: []string{""}}, pose, Options{ThrottleInterval: 30})

	for i := 0; i < 5; i++ {
		res, err := s.Process(context.Background(), frame(), DefaultSettings())
		require.NoError(t, err)
		require.Len(t, res.Keypoints, models.KeypointCount)
		require.Equal(t, 90, res.Stats.ElbowAngle)
	}
	require.Equal(t, 5, pose.calls)
}

func TestPoseFailureYieldsEmptyKeypoints(t *testing.T) {
	pose := &fixedPose{err: errors.New("bad output")}
	s := New("s1", &scriptedIdentifier{names: []string{""}}, pose, Options{})

	res, err := s.Process(context.Background(), frame(), DefaultSettings())
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, StagePose, fe.Stage)
	require.NotNil(t, res.Keypoints)
	require.Empty(t, res.Keypoints)
	require.Zero(t, res.Stats.ElbowAngle)
}

func TestCancelledContextDiscardsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New("s1", &scriptedIdentifier{names: []string{"Jane Doe"}}, nil, Options{})

	_, err := s.Process(ctx, frame(), DefaultSettings())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, uint64(0), s.FrameCount())
}

func TestOnIdentifiedFiresOnTransition(t *testing.T) {
	var seen []string
	ident := &scriptedIdentifier{names: []string{"A", "A", "", "B"}}
	s := New("s1", ident, nil, Options{ThrottleInterval: 1, OnIdentified: func(p string) { seen = append(seen, p) }})

	for i := 0; i < 4; i++ {
		_, err := s.Process(context.Background(), frame(), DefaultSettings())
		require.NoError(t, err)
	}
	require.Equal(t, []string{"A", "B"}, seen)
}

func TestScenarioEmptyGalleryPoseDisabled(t *testing.T) {
	id := identifier.New(fixedExtractor{{0.1, 0.2}}, snapshot{gallery.Empty()}, 0.6)
	s := New("s1", id, &fixedPose{pose: rightAnglePose()}, Options{})

	res, err := s.Process(context.Background(), frame(), Settings{Face: true, Pose: false})
	require.NoError(t, err)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	require.JSONEq(t, `{"player":null,"status":"Searching","keypoints":[],"stats":{"elbow_angle":0}}`, string(out))
}

func TestScenarioJaneDoeIdentified(t *testing.T) {
	g, err := gallery.New([]gallery.Entry{{Key: "Jane_Doe", Name: "Jane Doe", Embedding: []float32{0.1, 0.2, 0.3}}})
	require.NoError(t, err)
	id := identifier.New(fixedExtractor{{0.1, 0.2, 0.31}}, snapshot{g}, 0.6)
	s := New("s1", id, nil, Options{ElbowSide: biomech.SideLeft})

	res, err := s.Process(context.Background(), frame(), DefaultSettings())
	require.NoError(t, err)
	require.NotNil(t, res.Player)
	require.Equal(t, "Jane Doe", *res.Player)
	require.Equal(t, models.StatusIdentified, res.Status)
}
