package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"hoopsight/internal/core/biomech"
	"hoopsight/internal/core/gallery"
	"hoopsight/internal/core/identifier"
	"hoopsight/internal/core/models"
	"hoopsight/internal/core/pose"
	"hoopsight/internal/core/session"
	"hoopsight/internal/db/repository"
	"hoopsight/internal/integrations/facerecognition"
	"hoopsight/internal/util/timezone"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoFaceDetected wird bei der Einschreibung ohne erkanntes Gesicht geliefert
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrInvalidName meldet einen Namen, der nach der Bereinigung leer ist
	ErrInvalidName = errors.New("invalid player name")

	// ErrDimensionMismatch meldet ein Embedding, das nicht zur Galerie passt
	ErrDimensionMismatch = errors.New("embedding dimension does not match gallery")
)

// eventQueueSize begrenzt die Zahl der Ereignisse, die auf Zustellung warten
const eventQueueSize = 100

// EventPublisher verteilt Spieler-Ereignisse (SSE, MQTT)
type EventPublisher interface {
	PublishEvent(event models.PlayerEvent)
}

// Options enthält die Laufzeitparameter der Engine
type Options struct {
	Provider         string
	Tolerance        float64
	ThrottleInterval int
	ElbowSide        biomech.Side
	Workers          int
}

// Engine ist der zentrale Analysedienst. Sie hält Galerie, Identifier und
// Posenschätzer und führt Frames über den Worker-Pool aus.
type Engine struct {
	repo       repository.ProfileRepository
	registry   *gallery.Registry
	extractor  facerecognition.Extractor
	identifier *identifier.Identifier
	estimator  *pose.Estimator
	pool       *WorkerPool
	opts       Options
	publishers []EventPublisher
	pubMu      sync.RWMutex

	// Ereignisse werden von einer eigenen Goroutine zugestellt
	events       chan models.PlayerEvent
	eventsDone   chan struct{}
	eventsWG     sync.WaitGroup
	shutdownOnce sync.Once

	activeSessions atomic.Int64
}

// NewEngine erstellt die Engine. Die Galerie ist leer, bis Reload aufgerufen wird.
func NewEngine(repo repository.ProfileRepository, extractor facerecognition.Extractor,
	estimator *pose.Estimator, opts Options, publishers ...EventPublisher) *Engine {

	registry := gallery.NewRegistry(repo)
	e := &Engine{
		repo:       repo,
		registry:   registry,
		extractor:  extractor,
		identifier: identifier.New(extractor, registry, opts.Tolerance),
		estimator:  estimator,
		pool:       NewWorkerPool(opts.Workers),
		opts:       opts,
		publishers: publishers,
		events:     make(chan models.PlayerEvent, eventQueueSize),
		eventsDone: make(chan struct{}),
	}

	e.eventsWG.Add(1)
	go e.dispatchEvents()

	return e
}

// AddPublisher registriert einen weiteren Ereignisempfänger
func (e *Engine) AddPublisher(p EventPublisher) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	e.publishers = append(e.publishers, p)
}

// Reload lädt die Galerie aus dem Profilspeicher neu
func (e *Engine) Reload(ctx context.Context) error {
	_, err := e.registry.Reload(ctx)
	return err
}

// Profiles gibt die Anzeigenamen der Galerie in Galeriereihenfolge zurück
func (e *Engine) Profiles() []string {
	return e.registry.Snapshot().Names()
}

// Pool gibt den Worker-Pool zurück
func (e *Engine) Pool() *WorkerPool {
	return e.pool
}

// PoseAvailable meldet, ob ein Posenmodell geladen ist
func (e *Engine) PoseAvailable() bool {
	return e.estimator.Available()
}

// ActiveSessions gibt die Anzahl offener Sitzungen zurück
func (e *Engine) ActiveSessions() int64 {
	return e.activeSessions.Load()
}

// NewSession erstellt eine Sitzung für eine neue Verbindung.
// Die zurückgegebene Funktion muss beim Schließen der Verbindung aufgerufen werden.
func (e *Engine) NewSession() (*session.Session, func()) {
	id := uuid.NewString()
	sess := session.New(id, e.identifier, e.estimator, session.Options{
		ThrottleInterval: e.opts.ThrottleInterval,
		ElbowSide:        e.opts.ElbowSide,
		OnIdentified: func(player string) {
			e.publish(models.PlayerEvent{Type: models.EventIdentified, Player: player, SessionID: id})
		},
	})

	e.activeSessions.Add(1)
	log.WithField("session", id).Info("Analysis session started")

	return sess, func() {
		e.activeSessions.Add(-1)
		log.WithField("session", id).Infof("Analysis session ended after %d frames", sess.FrameCount())
	}
}

// Process analysiert einen Frame einer Sitzung über den Worker-Pool
func (e *Engine) Process(ctx context.Context, sess *session.Session, img image.Image, settings session.Settings) (models.AnalysisResult, error) {
	return e.pool.Submit(ctx, sess, img, settings)
}

// Enroll schreibt einen Spieler ein oder ersetzt sein Embedding.
// Gibt den Anzeigenamen zurück.
func (e *Engine) Enroll(ctx context.Context, name string, img image.Image) (string, error) {
	key := gallery.SanitizeName(name)
	if key == "" {
		return "", ErrInvalidName
	}

	embeddings, err := e.extractor.Extract(ctx, img)
	if err != nil {
		return "", fmt.Errorf("embedding extraction failed: %w", err)
	}
	if len(embeddings) == 0 {
		return "", ErrNoFaceDetected
	}
	embedding := embeddings[0]

	if g := e.registry.Snapshot(); g.Len() > 0 && g.Dimension() != len(embedding) {
		return "", fmt.Errorf("%w: got %d, gallery uses %d", ErrDimensionMismatch, len(embedding), g.Dimension())
	}

	display := gallery.DisplayName(key)
	if _, err := e.repo.SaveProfile(ctx, key, display, e.opts.Provider, embedding); err != nil {
		return "", err
	}

	if err := e.Reload(ctx); err != nil {
		return "", fmt.Errorf("profile saved but gallery reload failed: %w", err)
	}

	log.Infof("Player enrolled: %s (%d-d embedding)", display, len(embedding))
	e.publish(models.PlayerEvent{Type: models.EventEnrolled, Player: display})
	return display, nil
}

// DeleteProfile entfernt einen Spieler und lädt die Galerie neu
func (e *Engine) DeleteProfile(ctx context.Context, name string) error {
	key := gallery.SanitizeName(name)
	if key == "" {
		return ErrInvalidName
	}
	if err := e.repo.DeleteProfile(ctx, key); err != nil {
		return err
	}
	if err := e.Reload(ctx); err != nil {
		return fmt.Errorf("profile deleted but gallery reload failed: %w", err)
	}

	display := gallery.DisplayName(key)
	log.Infof("Player deleted: %s", display)
	e.publish(models.PlayerEvent{Type: models.EventDeleted, Player: display})
	return nil
}

// Shutdown beendet den Worker-Pool und stellt noch wartende Ereignisse zu
func (e *Engine) Shutdown() {
	e.pool.Shutdown()
	e.shutdownOnce.Do(func() {
		close(e.eventsDone)
	})
	e.eventsWG.Wait()
}

// publish reiht ein Ereignis ein, ohne den Aufrufer zu blockieren.
// Ist die Warteschlange voll, wird das Ereignis verworfen.
func (e *Engine) publish(event models.PlayerEvent) {
	event.Timestamp = timezone.Now()
	select {
	case <-e.eventsDone:
		log.Debugf("Engine stopped, dropping %s event for %s", event.Type, event.Player)
		return
	default:
	}

	select {
	case e.events <- event:
	default:
		log.Warnf("Event queue full, dropping %s event for %s", event.Type, event.Player)
	}
}

func (e *Engine) dispatchEvents() {
	defer e.eventsWG.Done()
	for {
		select {
		case event := <-e.events:
			e.deliver(event)
		case <-e.eventsDone:
			for {
				select {
				case event := <-e.events:
					e.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) deliver(event models.PlayerEvent) {
	e.pubMu.RLock()
	publishers := e.publishers
	e.pubMu.RUnlock()

	for _, p := range publishers {
		p.PublishEvent(event)
	}
}
