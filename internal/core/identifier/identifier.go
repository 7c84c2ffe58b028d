package identifier

import (
	"context"
	"fmt"
	"image"
	"math"

	"hoopsight/internal/core/gallery"
	"hoopsight/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
)

// DefaultTolerance ist die Standard-Distanzschwelle für einen Treffer
const DefaultTolerance = 0.6

// Snapshotter liefert die aktuell gültige Galerie
type Snapshotter interface {
	Snapshot() *gallery.Gallery
}

// Identifier gleicht Gesichter eines Frames mit der Galerie ab
type Identifier struct {
	extractor facerecognition.Extractor
	galleries Snapshotter
	tolerance float64
}

// New erstellt einen Identifier. Eine nicht positive Toleranz fällt auf den Standard zurück.
func New(extractor facerecognition.Extractor, galleries Snapshotter, tolerance float64) *Identifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Identifier{
		extractor: extractor,
		galleries: galleries,
		tolerance: tolerance,
	}
}

// Identify gleicht den Frame mit der aktuellen Galerie ab
func (i *Identifier) Identify(ctx context.Context, img image.Image) (string, bool, error) {
	return i.Match(ctx, img, i.galleries.Snapshot())
}

// Match liefert den Anzeigenamen des ersten Galerieeintrags innerhalb der Toleranz.
// Die Gesichter werden in Extraktionsreihenfolge geprüft, die Einträge in Galeriereihenfolge.
// Es gewinnt der erste Treffer, nicht der beste.
func (i *Identifier) Match(ctx context.Context, img image.Image, g *gallery.Gallery) (string, bool, error) {
	if g.Len() == 0 {
		return "", false, nil
	}

	embeddings, err := i.extractor.Extract(ctx, img)
	if err != nil {
		return "", false, fmt.Errorf("embedding extraction failed: %w", err)
	}

	for _, emb := range embeddings {
		if len(emb) != g.Dimension() {
			log.WithField("component", "identifier").Warnf("Skipping face with dimension %d, gallery dimension is %d", len(emb), g.Dimension())
			continue
		}

		var name string
		found := false
		g.Each(func(e gallery.Entry) bool {
			if Distance(emb, e.Embedding) <= i.tolerance {
				name = e.Name
				found = true
				return false
			}
			return true
		})
		if found {
			return name, true, nil
		}
	}

	return "", false, nil
}

// Distance berechnet die euklidische Distanz zweier gleich langer Vektoren
func Distance(a, b []float32) float64 {
	var sum float64
	for k := range a {
		d := float64(a[k]) - float64(b[k])
		sum += d * d
	}
	return math.Sqrt(sum)
}
