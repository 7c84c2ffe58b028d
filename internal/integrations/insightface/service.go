package insightface

import (
	"context"
	"fmt"
	"image"
	"math"

	"hoopsight/config"
	"hoopsight/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
)

// Service implementiert das facerecognition.Provider-Interface für InsightFace
type Service struct {
	client *APIClient
	config config.InsightFaceConfig
}

// NewService erstellt einen neuen InsightFace-Service
func NewService(cfg config.InsightFaceConfig) *Service {
	return &Service{
		client: NewAPIClient(cfg),
		config: cfg,
	}
}

// GetProviderName gibt den Namen des Providers zurück
func (s *Service) GetProviderName() facerecognition.ProviderType {
	return facerecognition.ProviderInsightFace
}

// IsAvailable prüft, ob der InsightFace-Dienst verfügbar ist
func (s *Service) IsAvailable(ctx context.Context) bool {
	if !s.config.Enabled {
		return false
	}

	available, err := s.client.Ping(ctx)
	if err != nil {
		log.WithFields(logFields).Debugf("Ping failed: %v", err)
	}
	return available
}

// Extract liefert die L2-normierten Embeddings aller erkannten Gesichter in der
// Reihenfolge des Dienstes. Gesichter ohne oder mit Null-Embedding werden ignoriert.
func (s *Service) Extract(ctx context.Context, img image.Image) ([][]float32, error) {
	apiResp, err := s.client.DetectFaces(ctx, img, s.config.DetectionThreshold)
	if err != nil {
		return nil, fmt.Errorf("insightface extraction failed: %w", err)
	}

	embeddings := make([][]float32, 0, len(apiResp.Faces))
	for _, face := range apiResp.Faces {
		embedding, ok := normalize(face.Embedding)
		if !ok {
			continue
		}
		embeddings = append(embeddings, embedding)
	}

	log.WithFields(logFields).Debugf("Detected %d faces in %.3fs", len(embeddings), apiResp.ProcessTime)
	return embeddings, nil
}

// normalize skaliert v auf Länge 1, damit die euklidische Distanz
// unabhängig vom Betrag der ArcFace-Vektoren ist
func normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, false
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}
