package session

import "hoopsight/internal/core/models"

// Identification ist das Ergebnis der (gecachten) Gesichtsidentifikation
type Identification struct {
	Player *string
	Status models.Status
}

// Assemble fügt die Teilergebnisse zur Antwort zusammen.
// Die Eingaben werden kopiert, keypoints ist nie nil.
func Assemble(ident Identification, pose models.PoseResult, elbowAngle int) models.AnalysisResult {
	var player *string
	if ident.Player != nil {
		name := *ident.Player
		player = &name
	}

	keypoints := make(models.PoseResult, len(pose))
	copy(keypoints, pose)

	return models.AnalysisResult{
		Player:    player,
		Status:    ident.Status,
		Keypoints: keypoints,
		Stats:     models.Stats{ElbowAngle: elbowAngle},
	}
}
