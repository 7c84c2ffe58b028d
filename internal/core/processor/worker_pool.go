package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"hoopsight/internal/core/models"
	"hoopsight/internal/core/session"

	log "github.com/sirupsen/logrus"
)

// ErrPoolClosed wird geliefert, wenn der Pool bereits heruntergefahren ist
var ErrPoolClosed = errors.New("worker pool is shut down")

// WorkerPool verwaltet einen Pool von Worker-Goroutinen für die Frame-Verarbeitung
type WorkerPool struct {
	jobs            chan *FrameJob
	workerCount     int
	activeJobs      int
	activeJobsMutex sync.Mutex
	processed       atomic.Uint64
	failed          atomic.Uint64
	shutdown        chan struct{}
	shutdownOnce    sync.Once
	wg              sync.WaitGroup
}

// FrameJob repräsentiert die Analyse eines Frames für eine Sitzung
type FrameJob struct {
	ctx      context.Context
	session  *session.Session
	img      image.Image
	settings session.Settings
	resultCh chan *FrameResult // Individueller Ergebniskanal pro Job
}

// FrameResult enthält das Ergebnis der Frame-Analyse
type FrameResult struct {
	Result models.AnalysisResult
	Err    error
}

// NewWorkerPool erstellt einen neuen Worker-Pool. workerCount <= 0 wählt
// container-bewusst 75% der verfügbaren CPUs, mindestens 2.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = max(2, (runtime.NumCPU()*3)/4)
	}

	log.Infof("Initializing frame processing worker pool with %d workers", workerCount)

	pool := &WorkerPool{
		jobs:        make(chan *FrameJob, workerCount*2), // Puffer für Jobs
		workerCount: workerCount,
		shutdown:    make(chan struct{}),
	}

	pool.startWorkers()

	return pool
}

// startWorkers startet die Worker-Goroutinen
func (p *WorkerPool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			log.Debugf("Worker %d started", workerID)

			for {
				select {
				case job := <-p.jobs:
					p.run(workerID, job)
				case <-p.shutdown:
					log.Debugf("Worker %d received shutdown signal", workerID)
					return
				}
			}
		}(i)
	}
}

// run führt einen Job aus und liefert das Ergebnis an den anfragenden Goroutine
func (p *WorkerPool) run(workerID int, job *FrameJob) {
	// Abgebrochene Verbindungen nicht mehr verarbeiten
	if err := job.ctx.Err(); err != nil {
		job.resultCh <- &FrameResult{Err: err}
		return
	}

	p.activeJobsMutex.Lock()
	p.activeJobs++
	jobCount := p.activeJobs
	p.activeJobsMutex.Unlock()

	log.Debugf("Worker %d processing frame for session %s (active jobs: %d)",
		workerID, job.session.ID(), jobCount)

	startTime := time.Now()
	result := p.execute(job)

	p.activeJobsMutex.Lock()
	p.activeJobs--
	p.activeJobsMutex.Unlock()

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		p.failed.Add(1)
	}
	p.processed.Add(1)

	// resultCh ist gepuffert, der Worker blockiert nie
	job.resultCh <- result

	log.Debugf("Worker %d completed frame in %v", workerID, time.Since(startTime))
}

// execute ruft die Sitzung auf und wandelt Panics in einen FatalError um
func (p *WorkerPool) execute(job *FrameJob) (result *FrameResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered panic in frame processing for session %s: %v\n%s",
				job.session.ID(), r, debug.Stack())
			result = &FrameResult{Err: &session.FatalError{Err: fmt.Errorf("panic: %v", r)}}
		}
	}()

	res, err := job.session.Process(job.ctx, job.img, job.settings)
	return &FrameResult{Result: res, Err: err}
}

// Submit verarbeitet einen Frame über den Worker-Pool und wartet auf das Ergebnis
func (p *WorkerPool) Submit(ctx context.Context, sess *session.Session, img image.Image,
	settings session.Settings) (models.AnalysisResult, error) {

	resultCh := make(chan *FrameResult, 1)

	job := &FrameJob{
		ctx:      ctx,
		session:  sess,
		img:      img,
		settings: settings,
		resultCh: resultCh,
	}

	select {
	case <-p.shutdown:
		return models.AnalysisResult{}, ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
		// Job angenommen
	case <-p.shutdown:
		return models.AnalysisResult{}, ErrPoolClosed
	case <-ctx.Done():
		return models.AnalysisResult{}, ctx.Err()
	}

	select {
	case result := <-resultCh:
		return result.Result, result.Err
	case <-p.shutdown:
		return models.AnalysisResult{}, ErrPoolClosed
	}
}

// ActiveJobCount gibt die Anzahl der aktuell aktiven Jobs zurück
func (p *WorkerPool) ActiveJobCount() int {
	p.activeJobsMutex.Lock()
	defer p.activeJobsMutex.Unlock()
	return p.activeJobs
}

// GetWorkerCount gibt die Anzahl der Worker im Pool zurück
func (p *WorkerPool) GetWorkerCount() int {
	return p.workerCount
}

// GetQueueCapacity gibt die Kapazität der Job-Queue zurück
func (p *WorkerPool) GetQueueCapacity() int {
	return cap(p.jobs)
}

// ProcessedCount gibt die Anzahl der verarbeiteten Frames zurück
func (p *WorkerPool) ProcessedCount() uint64 {
	return p.processed.Load()
}

// FailedCount gibt die Anzahl der Frames mit Fehlern zurück
func (p *WorkerPool) FailedCount() uint64 {
	return p.failed.Load()
}

// Shutdown fährt den Worker-Pool herunter und wartet auf laufende Jobs
func (p *WorkerPool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
	p.wg.Wait()
}
