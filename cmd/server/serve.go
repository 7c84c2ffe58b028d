package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hoopsight/internal/api"
	"hoopsight/internal/api/middleware"
	"hoopsight/internal/core/biomech"
	"hoopsight/internal/core/frame"
	"hoopsight/internal/core/processor"
	"hoopsight/internal/db"
	"hoopsight/internal/db/repository"
	"hoopsight/internal/integrations/facerecognition"
	"hoopsight/internal/integrations/mqtt"
	"hoopsight/internal/integrations/opencv"
	"hoopsight/internal/integrations/provider"
	"hoopsight/internal/logger"
	"hoopsight/internal/server/sse"
	"hoopsight/internal/server/ws"
	gallerysync "hoopsight/internal/services/sync"
	"hoopsight/internal/util/timezone"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	logCloser, err := logger.Init(cfg.Log)
	if err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}
	defer logCloser.Close()

	timezone.Initialize(cfg.Server.Timezone)
	frame.SetMaxPixels(cfg.Server.MaxFramePixels)

	// Profilspeicher
	log.Info("Initializing profile database...")
	conn, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close(conn)
	repo := repository.NewSQLiteRepository(conn)

	// Gesichtserkennung: ohne Provider laufen die Frames mit Gesichtsfehlern weiter
	faces, faceCloser, err := provider.CreateManager(cfg.Face)
	if err != nil {
		log.Errorf("Face provider unavailable, identification disabled: %v", err)
		faces = facerecognition.NewProviderManager()
	} else {
		defer faceCloser.Close()
	}

	estimator, closePose := opencv.NewPoseEstimator(cfg.Pose)
	defer closePose()

	side, err := biomech.ParseSide(cfg.Analysis.ElbowSide)
	if err != nil {
		return err
	}

	hub := sse.NewHub()
	go hub.Run()
	defer hub.Stop()

	engine := processor.NewEngine(repo, faces, estimator, processor.Options{
		Provider:         cfg.Face.Provider,
		Tolerance:        cfg.Face.Tolerance,
		ThrottleInterval: cfg.Face.ThrottleInterval,
		ElbowSide:        side,
		Workers:          cfg.Workers.Count,
	}, hub)
	defer engine.Shutdown()

	if err := engine.Reload(ctx); err != nil {
		log.Errorf("Initial gallery load failed, starting with an empty gallery: %v", err)
	}
	log.Infof("Gallery loaded with %d players", len(engine.Profiles()))

	syncService := gallerysync.NewService(engine, time.Duration(cfg.Face.SyncInterval)*time.Second)
	syncService.Start()
	defer syncService.Stop()

	if cfg.MQTT.Enabled {
		client := mqtt.NewClient(cfg.MQTT)
		publisher := mqtt.NewPublisher(client, engine)
		engine.AddPublisher(publisher)

		client.RegisterHandler(client.Topic(mqtt.TopicReload), mqtt.HandlerFunc(func(topic string, payload []byte) {
			log.Infof("Gallery reload requested via MQTT (%s)", topic)
			if err := engine.Reload(context.Background()); err != nil {
				log.Errorf("Gallery reload via MQTT failed: %v", err)
			}
		}))

		if err := client.Start(); err != nil {
			log.Warnf("Failed to start MQTT client: %v. Continuing without MQTT.", err)
		} else {
			publisher.PublishProfiles()
			defer client.Stop()
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	streams := ws.NewHandler(engine, ws.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxMessageSize: cfg.Server.MaxMessageSize,
	})

	translator, err := middleware.NewTranslator(middleware.I18nConfig{DefaultLanguage: cfg.I18n.DefaultLanguage})
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(cfg.Server, api.Dependencies{
		Service:    engine,
		Pool:       engine.Pool(),
		Streams:    streams,
		Hub:        hub,
		Translator: translator,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Graceful shutdown incomplete: %v", err)
	}

	log.Info("Server stopped.")
	return nil
}
