package opencv

import (
	"hoopsight/config"
	"hoopsight/internal/core/pose"

	log "github.com/sirupsen/logrus"
)

// NewPoseEstimator erstellt den Posenschätzer. Ist die Posenschätzung deaktiviert
// oder lässt sich das Modell nicht laden, liefert der Schätzer leere Posen.
// Der Closer ist nie nil.
func NewPoseEstimator(cfg config.PoseConfig) (*pose.Estimator, func() error) {
	opts := pose.Options{
		InputWidth:          cfg.InputWidth,
		InputHeight:         cfg.InputHeight,
		SplitRatio:          cfg.SplitRatio,
		PropagateConfidence: cfg.PropagateConfidence,
	}

	if !cfg.Enabled {
		log.Info("Pose estimation is disabled in configuration")
		return pose.NewEstimator(nil, opts), func() error { return nil }
	}

	model, err := NewPoseModel(cfg)
	if err != nil {
		log.Errorf("Pose model could not be loaded, pose analysis disabled: %v", err)
		return pose.NewEstimator(nil, opts), func() error { return nil }
	}

	return pose.NewEstimator(model, opts), model.Close
}
