package facerecognition

import (
	"context"
	"errors"
	"image"
)

// ProviderType definiert den Typ des Embedding-Extraktors
type ProviderType string

const (
	// ProviderInsightFace steht für den InsightFace-HTTP-Dienst
	ProviderInsightFace ProviderType = "insightface"

	// ProviderDlib steht für den lokalen dlib-Extraktor (go-face)
	ProviderDlib ProviderType = "dlib"
)

// ErrProviderUnavailable wird geliefert, wenn kein Extraktor aktiv ist
var ErrProviderUnavailable = errors.New("face provider unavailable")

// Face repräsentiert ein erkanntes Gesicht
type Face struct {
	// BoundingBox enthält die Koordinaten des Gesichts im Bild (x1, y1, x2, y2)
	BoundingBox []int `json:"bounding_box"`

	// Confidence ist die Konfidenz der Gesichtserkennung (0-1)
	Confidence float64 `json:"confidence"`

	// Embedding ist der Gesichtsvektor
	Embedding []float32 `json:"embedding,omitempty"`
}

// Extractor liefert für jedes erkannte Gesicht ein Embedding.
// Null Gesichter ergeben eine leere Liste und keinen Fehler.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) ([][]float32, error)
}

// Provider ist ein benannter Extraktor mit Verfügbarkeitsprüfung
type Provider interface {
	Extractor

	// GetProviderName gibt den Namen des Providers zurück
	GetProviderName() ProviderType

	// IsAvailable prüft, ob der Dienst verfügbar ist
	IsAvailable(ctx context.Context) bool
}

// ProviderManager verwaltet die registrierten Extraktoren
type ProviderManager struct {
	providers map[ProviderType]Provider
	active    ProviderType
}

// NewProviderManager erstellt einen neuen ProviderManager
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		providers: make(map[ProviderType]Provider),
	}
}

// RegisterProvider registriert einen Extraktor
func (m *ProviderManager) RegisterProvider(provider Provider) {
	m.providers[provider.GetProviderName()] = provider
}

// SetActiveProvider setzt den aktiven Extraktor
func (m *ProviderManager) SetActiveProvider(providerType ProviderType) bool {
	if _, exists := m.providers[providerType]; exists {
		m.active = providerType
		return true
	}
	return false
}

// GetActiveProviderName gibt den Namen des aktiven Extraktors zurück
func (m *ProviderManager) GetActiveProviderName() ProviderType {
	return m.active
}

// GetActiveProvider gibt den aktiven Extraktor zurück
func (m *ProviderManager) GetActiveProvider() (Provider, bool) {
	if m.active == "" {
		return nil, false
	}
	provider, exists := m.providers[m.active]
	return provider, exists
}

// Extract delegiert an den aktiven Extraktor
func (m *ProviderManager) Extract(ctx context.Context, img image.Image) ([][]float32, error) {
	provider, ok := m.GetActiveProvider()
	if !ok {
		return nil, ErrProviderUnavailable
	}
	return provider.Extract(ctx, img)
}

// GetAvailableProviders gibt eine Liste aller erreichbaren Extraktoren zurück
func (m *ProviderManager) GetAvailableProviders(ctx context.Context) []ProviderType {
	var available []ProviderType
	for name, provider := range m.providers {
		if provider.IsAvailable(ctx) {
			available = append(available, name)
		}
	}
	return available
}
