package processor

import (
	"context"
	"image"
	"testing"

	"hoopsight/internal/core/models"
	"hoopsight/internal/core/session"

	"github.com/stretchr/testify/require"
)

type panickingPose struct{}

func (panickingPose) Estimate(ctx context.Context, img image.Image) (models.PoseResult, error) {
	panic("model crashed")
}

func TestWorkerPoolRecoversPanics(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Shutdown()

	sess := session.New("s1", nil, panickingPose{}, session.Options{})
	_, err := pool.Submit(context.Background(), sess, image.NewRGBA(image.Rect(0, 0, 2, 2)), session.Settings{Pose: true})
	require.Error(t, err)
	require.True(t, session.IsFatal(err))
	require.EqualValues(t, 1, pool.FailedCount())

	// Der Worker lebt weiter
	res, err := pool.Submit(context.Background(), sess, image.NewRGBA(image.Rect(0, 0, 2, 2)), session.Settings{})
	require.NoError(t, err)
	require.Equal(t, models.StatusDisabled, res.Status)
}

func TestWorkerPoolSkipsCancelledJobs(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sess := session.New("s1", nil, nil, session.Options{})
	_, err := pool.Submit(ctx, sess, image.NewRGBA(image.Rect(0, 0, 2, 2)), session.DefaultSettings())
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, sess.FrameCount())
}

func TestWorkerPoolAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(2)
	require.Equal(t, 2, pool.GetWorkerCount())
	require.Equal(t, 4, pool.GetQueueCapacity())
	pool.Shutdown()
	pool.Shutdown()

	sess := session.New("s1", nil, nil, session.Options{})
	_, err := pool.Submit(context.Background(), sess, image.NewRGBA(image.Rect(0, 0, 2, 2)), session.DefaultSettings())
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestDefaultWorkerCount(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Shutdown()
	require.GreaterOrEqual(t, pool.GetWorkerCount(), 2)
}
