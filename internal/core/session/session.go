package session

import (
	"context"
	"errors"
	"image"
	"sync"

	"hoopsight/internal/core/biomech"
	"hoopsight/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// DefaultThrottleInterval ist der Abstand zwischen zwei Identifikationen in Frames
const DefaultThrottleInterval = 30

// Identifier identifiziert den Spieler in einem Frame
type Identifier interface {
	Identify(ctx context.Context, img image.Image) (string, bool, error)
}

// PoseEstimator liefert 0 oder 17 Gelenkpunkte
type PoseEstimator interface {
	Estimate(ctx context.Context, img image.Image) (models.PoseResult, error)
}

// Options konfiguriert eine Sitzung
type Options struct {
	ThrottleInterval int
	ElbowSide        biomech.Side
	// OnIdentified wird aufgerufen, wenn ein neuer Spieler erkannt wurde
	OnIdentified func(player string)
}

// Session hält den Zustand einer Verbindung. Frames einer Sitzung werden
// nacheinander verarbeitet, der Zustand wird nie zwischen Sitzungen geteilt.
type Session struct {
	id       string
	ident    Identifier
	pose     PoseEstimator
	interval uint64
	side     biomech.Side
	onIdent  func(string)
	logger   *log.Entry

	mu         sync.Mutex
	frameCount uint64
	lastPlayer *string
	lastStatus models.Status
}

// New erstellt eine Sitzung im Anfangszustand (0 Frames, kein Spieler, Searching)
func New(id string, ident Identifier, pose PoseEstimator, opts Options) *Session {
	interval := opts.ThrottleInterval
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	side := opts.ElbowSide
	if side == "" {
		side = biomech.SideRight
	}
	return &Session{
		id:         id,
		ident:      ident,
		pose:       pose,
		interval:   uint64(interval),
		side:       side,
		onIdent:    opts.OnIdentified,
		logger:     log.WithFields(log.Fields{"component": "session", "session": id}),
		lastStatus: models.StatusSearching,
	}
}

// ID gibt die Sitzungskennung zurück
func (s *Session) ID() string {
	return s.id
}

// FrameCount gibt die Anzahl der verarbeiteten Frames zurück
func (s *Session) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

// Process analysiert einen Frame. Das Ergebnis ist auch dann gültig, wenn ein
// *FrameError zurückkommt. Bei abgebrochenem Kontext wird kein Ergebnis geliefert.
func (s *Session) Process(ctx context.Context, img image.Image, settings Settings) (models.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return models.AnalysisResult{}, err
	}

	var frameErrs []error

	due := settings.Face && s.ident != nil && s.frameCount%s.interval == 0
	s.frameCount++

	if due {
		if err := s.identify(ctx, img); err != nil {
			if ctx.Err() != nil {
				return models.AnalysisResult{}, ctx.Err()
			}
			s.logger.Warnf("Face identification failed, keeping cached state: %v", err)
			frameErrs = append(frameErrs, &FrameError{Stage: StageFace, Err: err})
		}
	}

	ident := Identification{Player: s.lastPlayer, Status: s.lastStatus}
	if !settings.Face {
		ident = Identification{Player: nil, Status: models.StatusDisabled}
	}

	pose := models.PoseResult{}
	if settings.Pose && s.pose != nil {
		p, err := s.pose.Estimate(ctx, img)
		switch {
		case err != nil && ctx.Err() != nil:
			return models.AnalysisResult{}, ctx.Err()
		case err != nil:
			s.logger.Warnf("Pose estimation failed: %v", err)
			frameErrs = append(frameErrs, &FrameError{Stage: StagePose, Err: err})
		default:
			pose = p
		}
	}

	result := Assemble(ident, pose, biomech.ElbowAngle(pose, s.side))
	return result, errors.Join(frameErrs...)
}

// identify führt die Identifikation aus und aktualisiert den Cache
func (s *Session) identify(ctx context.Context, img image.Image) error {
	name, ok, err := s.ident.Identify(ctx, img)
	if err != nil {
		return err
	}

	if !ok {
		s.lastPlayer = nil
		s.lastStatus = models.StatusSearching
		return nil
	}

	changed := s.lastPlayer == nil || *s.lastPlayer != name
	s.lastPlayer = &name
	s.lastStatus = models.StatusIdentified

	if changed {
		s.logger.Infof("Player identified: %s", name)
		if s.onIdent != nil {
			s.onIdent(name)
		}
	}
	return nil
}
