package biomech

import (
	"fmt"
	"math"

	"hoopsight/internal/core/models"
)

// Side wählt den Arm für die Ellbogenmessung
type Side string

const (
	SideRight Side = "right"
	SideLeft  Side = "left"
)

// ParseSide liest die Seite aus der Konfiguration
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideRight, SideLeft:
		return Side(s), nil
	case "":
		return SideRight, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// joints liefert die Indizes (Schulter, Ellbogen, Handgelenk) der Seite
func (s Side) joints() (int, int, int) {
	if s == SideLeft {
		return models.LeftShoulder, models.LeftElbow, models.LeftWrist
	}
	return models.RightShoulder, models.RightElbow, models.RightWrist
}

// Angle berechnet den Winkel am Scheitel b zwischen a und c in ganzen Grad (0..180).
// Degenerierte Vektoren ergeben 90, da das Skalarprodukt dann 0 ist.
func Angle(a, b, c models.Keypoint) int {
	bax, bay := float64(a.X-b.X), float64(a.Y-b.Y)
	bcx, bcy := float64(c.X-b.X), float64(c.Y-b.Y)

	cos := (bax*bcx + bay*bcy) / (math.Hypot(bax, bay)*math.Hypot(bcx, bcy) + 1e-6)
	cos = math.Max(-1, math.Min(1, cos))

	return int(math.Round(math.Acos(cos) * 180 / math.Pi))
}

// ElbowAngle misst den Ellbogenwinkel der gewählten Seite. Liefert 0, wenn die Pose
// unvollständig ist oder Ellbogen bzw. Handgelenk nicht erkannt wurden.
func ElbowAngle(pose models.PoseResult, side Side) int {
	if !pose.Complete() {
		return 0
	}
	shoulder, elbow, wrist := side.joints()
	if pose[elbow].IsOrigin() || pose[wrist].IsOrigin() {
		return 0
	}
	return Angle(pose[shoulder], pose[elbow], pose[wrist])
}
