package sync

import (
	"context"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Reloader lädt die Galerie aus dem Profilspeicher neu
type Reloader interface {
	Reload(ctx context.Context) error
	Profiles() []string
}

// Service gleicht die Galerie regelmäßig mit dem Profilspeicher ab, damit
// Änderungen anderer Prozesse (z.B. "profiles delete") übernommen werden
type Service struct {
	reloader Reloader
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	mutex    sync.Mutex
}

// NewService erstellt eine neue Instanz des SyncService
func NewService(reloader Reloader, interval time.Duration) *Service {
	return &Service{
		reloader: reloader,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start startet den SyncService. Ein Intervall <= 0 deaktiviert ihn.
func (s *Service) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return
	}
	if s.interval <= 0 {
		log.Info("Periodic gallery sync disabled (interval set to 0)")
		return
	}

	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.processingLoop()

	log.Infof("Periodic gallery sync started (every %s)", s.interval)
}

// Stop stoppt den SyncService
func (s *Service) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
	s.wg.Wait()
	s.running = false

	log.Info("Periodic gallery sync stopped")
}

// processingLoop gleicht in jedem Takt einmal ab
func (s *Service) processingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.syncOnce()
		case <-s.stopCh:
			return
		}
	}
}

// syncOnce lädt die Galerie neu und protokolliert Änderungen
func (s *Service) syncOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	before := s.reloader.Profiles()
	if err := s.reloader.Reload(ctx); err != nil {
		log.WithError(err).Error("Periodic gallery sync failed, keeping current gallery")
		return
	}

	after := s.reloader.Profiles()
	if !slices.Equal(before, after) {
		log.Infof("Gallery changed during sync: %d -> %d players", len(before), len(after))
	}
}
