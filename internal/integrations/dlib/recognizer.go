package dlib

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"hoopsight/config"
	"hoopsight/internal/integrations/facerecognition"

	"github.com/Kagami/go-face"
	log "github.com/sirupsen/logrus"
)

var logFields = log.Fields{
	"component": "dlib",
}

// Recognizer extrahiert 128-dimensionale dlib-Deskriptoren mit go-face
type Recognizer struct {
	rec *face.Recognizer
	mu  sync.Mutex // go-face teilt den dlib-Kontext zwischen Aufrufen
}

// NewRecognizer lädt die dlib-Modelle aus dem konfigurierten Verzeichnis
func NewRecognizer(cfg config.DlibConfig) (*Recognizer, error) {
	rec, err := face.NewRecognizer(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", cfg.ModelsDir, err)
	}
	log.WithFields(logFields).Infof("dlib models loaded from %s", cfg.ModelsDir)
	return &Recognizer{rec: rec}, nil
}

// GetProviderName gibt den Namen des Providers zurück
func (r *Recognizer) GetProviderName() facerecognition.ProviderType {
	return facerecognition.ProviderDlib
}

// IsAvailable ist wahr, solange die Modelle geladen sind
func (r *Recognizer) IsAvailable(ctx context.Context) bool {
	return r != nil && r.rec != nil
}

// Extract liefert einen Deskriptor pro erkanntem Gesicht
func (r *Recognizer) Extract(ctx context.Context, img image.Image) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	r.mu.Lock()
	faces, err := r.rec.Recognize(buf.Bytes())
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("dlib recognition failed: %w", err)
	}

	embeddings := make([][]float32, len(faces))
	for i, f := range faces {
		vec := make([]float32, len(f.Descriptor))
		copy(vec, f.Descriptor[:])
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Close gibt die dlib-Ressourcen frei
func (r *Recognizer) Close() {
	if r.rec != nil {
		r.rec.Close()
		r.rec = nil
	}
}
