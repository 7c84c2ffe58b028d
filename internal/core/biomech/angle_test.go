package biomech

import (
	"testing"

	"hoopsight/internal/core/models"

	"github.com/stretchr/testify/require"
)

func kp(x, y int) models.Keypoint {
	return models.Keypoint{X: x, Y: y, Confidence: 1}
}

func TestAngle(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c models.Keypoint
		want    int
	}{
		{"straight", kp(0, 0), kp(1, 0), kp(2, 0), 180},
		{"right angle", kp(0, 0), kp(1, 0), kp(1, 1), 90},
		{"folded", kp(2, 0), kp(1, 0), kp(2, 0), 0},
		{"45 degrees", kp(2, 0), kp(0, 0), kp(2, 2), 45},
		{"degenerate vertex", kp(1, 1), kp(1, 1), kp(5, 5), 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Angle(tt.a, tt.b, tt.c))
		})
	}
}

func fullPose() models.PoseResult {
	pose := make(models.PoseResult, models.KeypointCount)
	for i := range pose {
		pose[i] = kp(10+i, 10+i)
	}
	return pose
}

func TestElbowAngleRightSide(t *testing.T) {
	pose := fullPose()
	pose[models.RightShoulder] = kp(100, 100)
	pose[models.RightElbow] = kp(100, 200)
	pose[models.RightWrist] = kp(200, 200)
	require.Equal(t, 90, ElbowAngle(pose, SideRight))
}

func TestElbowAngleLeftSide(t *testing.T) {
	pose := fullPose()
	pose[models.LeftShoulder] = kp(50, 50)
	pose[models.LeftElbow] = kp(50, 100)
	pose[models.LeftWrist] = kp(50, 150)
	require.Equal(t, 180, ElbowAngle(pose, SideLeft))
}

func TestElbowAngleGuards(t *testing.T) {
	require.Equal(t, 0, ElbowAngle(models.PoseResult{}, SideRight))
	require.Equal(t, 0, ElbowAngle(fullPose()[:16], SideRight))

	pose := fullPose()
	pose[models.RightElbow] = kp(0, 0)
	require.Equal(t, 0, ElbowAngle(pose, SideRight))

	pose = fullPose()
	pose[models.RightWrist] = kp(0, 0)
	require.Equal(t, 0, ElbowAngle(pose, SideRight))
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("")
	require.NoError(t, err)
	require.Equal(t, SideRight, s)

	s, err = ParseSide("left")
	require.NoError(t, err)
	require.Equal(t, SideLeft, s)

	_, err = ParseSide("middle")
	require.Error(t, err)
}
