package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"proctor/internal/config"
	"proctor/internal/dto"
	"proctor/internal/logger"
	"proctor/internal/routes"
	"proctor/internal/service"
	"proctor/internal/service/ai"
	"proctor/internal/service/proctor"
	"proctor/internal/service/source"
	"proctor/internal/service/storage"
	"proctor/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	detector *ai.DetectorService
	hub      *websocket.HubService
	evidence *storage.BufferService
	manager  *service.Manager
}

// NewApp wires every service from cfg. Nothing heavy happens here; the model is loaded
// on the first frame.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	fetcher, err := source.NewFetcher(cfg)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	detector := ai.NewDetectorService(cfg, log)
	classifier := proctor.NewClassifier(proctor.NewPolicy(cfg))
	reader := source.NewReader(cfg, log, fetcher)
	manager := service.NewManager(detector, classifier, reader, cfg, log)

	a := &App{
		config:   cfg,
		logger:   log,
		detector: detector,
		manager:  manager,
	}

	if cfg.ListenAddr != "" {
		a.hub = websocket.NewHubService(log)
		manager.WithViewers(a.hub)
	}
	if cfg.EvidenceDirectory != "" {
		a.evidence = storage.NewBufferService(cfg, log)
		manager.WithEvidence(a.evidence)
	}

	return a, nil
}

// AnalyzeVideo runs one bounded analysis of path.
func (a *App) AnalyzeVideo(ctx context.Context, path string, maxFrames int) (dto.Verdict, error) {
	return a.manager.AnalyzeVideo(ctx, path, maxFrames)
}

// RunStream monitors the camera until ctx is done. When configured, live viewers are
// served on the listen address and violation snapshots are flushed in the background.
func (a *App) RunStream(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.evidence != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			a.evidence.Run(ctx, a.config.EvidenceFlushInterval)
		}()
		defer func() { <-done }()
		defer cancel()
	}

	if a.hub != nil {
		go a.hub.Run(ctx)

		server := &http.Server{
			Addr:    a.config.ListenAddr,
			Handler: routes.SetupRoutes(a.hub, a.config, a.logger),
		}
		go func() {
			a.logger.Info("Live view: ws://%s/ws", a.config.ListenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Live view server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("Live view server shutdown: %v", err)
			}
		}()
	}

	a.logger.Info("AI Model: %s (%s)", a.config.ModelPath, a.config.DetectorBackend)
	return a.manager.RunStream(ctx)
}

// Close releases the model and log files.
func (a *App) Close() {
	if err := a.detector.Close(); err != nil {
		a.logger.Error("Failed to release detection model: %v", err)
	}
	a.logger.Close()
}
