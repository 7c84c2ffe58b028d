package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile repräsentiert einen eingeschriebenen Spieler mit seinem Gesichts-Embedding
type Profile struct {
	gorm.Model
	Key       string         `gorm:"column:profile_key;uniqueIndex;not null"` // Bereinigter Name, dient als Speicherschlüssel
	Name      string         `gorm:"not null"`                                // Anzeigename
	Embedding datatypes.JSON `gorm:"type:json"`                               // JSON-Array mit dem Embedding-Vektor
	Dimension int            // Länge des Embeddings zum Zeitpunkt der Einschreibung
	Provider  string         `gorm:"index"` // Extraktor, der das Embedding erzeugt hat
}

// Status beschreibt den Identifikationszustand einer Sitzung
type Status string

const (
	StatusSearching  Status = "Searching"
	StatusIdentified Status = "Identified"
	StatusDisabled   Status = "N/A"
)

// KeypointCount ist die Anzahl der Gelenkpunkte im COCO-17-Layout
const KeypointCount = 17

// Indizes im COCO-17-Layout
const (
	Nose = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// Keypoint ist ein einzelner Gelenkpunkt in Bildkoordinaten
type Keypoint struct {
	X          int
	Y          int
	Confidence float64
}

// MarshalJSON kodiert den Punkt als [x, y, confidence]
func (k Keypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{k.X, k.Y, k.Confidence})
}

// UnmarshalJSON liest die Form [x, y, confidence]
func (k *Keypoint) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("keypoint must have 3 components, got %d", len(raw))
	}
	k.X, k.Y, k.Confidence = int(raw[0]), int(raw[1]), raw[2]
	return nil
}

// IsOrigin meldet, ob der Punkt auf dem Ursprung liegt (= nicht erkannt)
func (k Keypoint) IsOrigin() bool {
	return k.X == 0 && k.Y == 0
}

// PoseResult enthält entweder genau 17 Punkte oder keinen
type PoseResult []Keypoint

// Complete meldet, ob alle 17 Punkte vorhanden sind
func (p PoseResult) Complete() bool {
	return len(p) == KeypointCount
}

// Stats enthält die biomechanischen Kennzahlen eines Frames
type Stats struct {
	ElbowAngle int `json:"elbow_angle"`
}

// AnalysisResult ist die Antwort auf einen Frame
type AnalysisResult struct {
	Player    *string    `json:"player"`
	Status    Status     `json:"status"`
	Keypoints PoseResult `json:"keypoints"`
	Stats     Stats      `json:"stats"`
}

// PlayerEvent wird bei einer neuen Identifikation oder Profiländerung verteilt
type PlayerEvent struct {
	Type      string    `json:"type"` // "identified", "enrolled", "deleted"
	Player    string    `json:"player"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event-Typen
const (
	EventIdentified = "identified"
	EventEnrolled   = "enrolled"
	EventDeleted    = "deleted"
)
