package pose

import (
	"context"
	"errors"
	"fmt"
	"image"

	"hoopsight/internal/core/models"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrMalformedOutput meldet eine SimCC-Ausgabe mit unerwarteter Form
	ErrMalformedOutput = errors.New("malformed pose model output")

	// ErrModelUnavailable meldet ein nicht geladenes oder deaktiviertes Posenmodell
	ErrModelUnavailable = errors.New("pose model unavailable")
)

// SimCC enthält die beiden 1D-Verteilungen pro Gelenkpunkt:
// X hat die Form [17][W·split], Y die Form [17][H·split].
type SimCC struct {
	X [][]float32
	Y [][]float32
}

// Model führt das Posennetz auf einem vorverarbeiteten Tensor aus
type Model interface {
	Infer(ctx context.Context, input Tensor) (SimCC, error)
}

// Options beschreibt Eingabegröße und Dekodierung des Modells
type Options struct {
	InputWidth          int
	InputHeight         int
	SplitRatio          float64
	PropagateConfidence bool
}

// DefaultOptions entspricht RTMPose mit 192×256 Eingabe und Split-Faktor 2
func DefaultOptions() Options {
	return Options{InputWidth: 192, InputHeight: 256, SplitRatio: 2.0}
}

// bins liefert die erwartete Anzahl Bins pro Achse
func (o Options) bins() (int, int) {
	return int(float64(o.InputWidth) * o.SplitRatio), int(float64(o.InputHeight) * o.SplitRatio)
}

// Estimator schätzt die 17 COCO-Gelenkpunkte eines Frames
type Estimator struct {
	model Model
	opts  Options
}

// NewEstimator erstellt einen Estimator. Ein nil-Modell ergibt immer leere Posen.
func NewEstimator(model Model, opts Options) *Estimator {
	if model == nil {
		log.WithField("component", "pose").Warn("Pose model unavailable, keypoints will be empty")
	}
	return &Estimator{model: model, opts: opts}
}

// Available meldet, ob ein Modell geladen ist
func (e *Estimator) Available() bool {
	return e != nil && e.model != nil
}

// Estimate liefert genau 17 Gelenkpunkte in Originalkoordinaten oder eine leere Pose,
// wenn kein Modell verfügbar ist.
func (e *Estimator) Estimate(ctx context.Context, img image.Image) (models.PoseResult, error) {
	if !e.Available() {
		return models.PoseResult{}, nil
	}

	b := img.Bounds()
	input := Preprocess(img, e.opts.InputWidth, e.opts.InputHeight)

	out, err := e.model.Infer(ctx, input)
	if errors.Is(err, ErrModelUnavailable) {
		return models.PoseResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pose inference failed: %w", err)
	}

	return Decode(out, b.Dx(), b.Dy(), e.opts)
}

// Decode wandelt die SimCC-Ausgabe in Gelenkpunkte um. Pro Achse gewinnt das erste
// Maximum, die Bin-Position wird abgeschnitten auf Originalkoordinaten skaliert.
func Decode(out SimCC, origW, origH int, opts Options) (models.PoseResult, error) {
	xBins, yBins := opts.bins()
	if err := checkShape(out.X, xBins, "x"); err != nil {
		return nil, err
	}
	if err := checkShape(out.Y, yBins, "y"); err != nil {
		return nil, err
	}

	scaleX := float64(origW) / float64(xBins)
	scaleY := float64(origH) / float64(yBins)

	result := make(models.PoseResult, models.KeypointCount)
	for k := 0; k < models.KeypointCount; k++ {
		xi, xp := argmax(out.X[k])
		yi, yp := argmax(out.Y[k])

		conf := 1.0
		if opts.PropagateConfidence {
			conf = clamp01(float64(min(xp, yp)))
		}

		result[k] = models.Keypoint{
			X:          int(float64(xi) * scaleX),
			Y:          int(float64(yi) * scaleY),
			Confidence: conf,
		}
	}
	return result, nil
}

func checkShape(rows [][]float32, bins int, axis string) error {
	if bins <= 0 {
		return fmt.Errorf("%w: simcc_%s expects %d bins", ErrMalformedOutput, axis, bins)
	}
	if len(rows) != models.KeypointCount {
		return fmt.Errorf("%w: simcc_%s has %d rows, expected %d", ErrMalformedOutput, axis, len(rows), models.KeypointCount)
	}
	for k, row := range rows {
		if len(row) != bins {
			return fmt.Errorf("%w: simcc_%s row %d has %d bins, expected %d", ErrMalformedOutput, axis, k, len(row), bins)
		}
	}
	return nil
}

// argmax liefert Index und Wert des ersten Maximums
func argmax(v []float32) (int, float32) {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best, v[best]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
