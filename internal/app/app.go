package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dubpilot-backend/internal/clients/gcs"
	"github.com/yungbote/dubpilot-backend/internal/clients/redisbus"
	"github.com/yungbote/dubpilot-backend/internal/clients/redisq"
	"github.com/yungbote/dubpilot-backend/internal/db"
	"github.com/yungbote/dubpilot-backend/internal/handlers"
	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/observability"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/server"
	"github.com/yungbote/dubpilot-backend/internal/services"
	"github.com/yungbote/dubpilot-backend/internal/sse"
)

type App struct {
	Log    *logger.Logger
	Config *Config

	pg     *db.PostgresService
	hub    *sse.Hub
	queue  redisq.Queue
	bus    redisbus.Bus
	router *gin.Engine

	busCancel    context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg := LoadConfig(log)

	a := &App{Log: log, Config: cfg}

	a.otelShutdown = observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "dubpilot-backend",
		Environment: cfg.AppEnv,
	})

	a.pg, err = db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	if err := a.pg.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	gdb := a.pg.DB()
	jobRepo := repos.NewJobRepo(gdb, log)
	projectRepo := repos.NewProjectRepo(gdb, log)
	targetRepo := repos.NewProjectTargetRepo(gdb, log)
	segmentRepo := repos.NewProjectSegmentRepo(gdb, log)
	translationRepo := repos.NewSegmentTranslationRepo(gdb, log)
	assetRepo := repos.NewAssetRepo(gdb, log)

	var bucket gcs.BucketService
	if bucketSvc, bucketErr := gcs.NewBucketService(log); bucketErr != nil {
		log.Warn("Media bucket unavailable; metadata fetch and audio probing disabled", "error", bucketErr)
	} else {
		bucket = bucketSvc
	}

	if cfg.RedisAddr != "" {
		queue, queueErr := redisq.New(log, redisq.Config{
			Addr:   cfg.RedisAddr,
			Stream: cfg.QueueStream,
			FIFO:   cfg.QueueFIFO,
		})
		if queueErr != nil {
			return nil, queueErr
		}
		a.queue = queue
	} else {
		log.Warn("REDIS_ADDR not set; job enqueue will be skipped")
	}

	a.hub = sse.NewHub(log)

	// With the redis bridge enabled, events travel through redis only; the
	// forwarder feeds the local hub, so local subscribers see each event once.
	var emitters []services.Emitter
	if cfg.EventBusEnabled && cfg.RedisAddr != "" {
		bus, busErr := redisbus.New(log, cfg.RedisAddr, cfg.EventBusChannel)
		if busErr != nil {
			return nil, busErr
		}
		a.bus = bus
		emitters = []services.Emitter{services.NewRedisEmitter(log, bus)}

		busCtx, cancel := context.WithCancel(context.Background())
		a.busCancel = cancel
		if err := bus.StartForwarder(busCtx, a.hub.Broadcast); err != nil {
			return nil, err
		}
	} else {
		emitters = []services.Emitter{services.NewHubEmitter(a.hub)}
	}

	notifier := services.NewNotifier(log, emitters...)
	assetSvc := services.NewAssetService(log, assetRepo)
	identity := services.NewSegmentIdentityResolver(log, segmentRepo)
	reconciler := services.NewSegmentReconciler(log, segmentRepo, translationRepo, bucket, assetSvc)
	probe := services.NewAudioProbe(log, bucket)
	jobSvc := services.NewJobService(log, jobRepo, cfg.CallbackBaseURL)
	gateway := services.NewJobQueueGateway(log, a.queue, jobSvc, jobRepo, projectRepo, segmentRepo, translationRepo, nil, cfg.AppEnv)
	dispatcher := services.NewPipelineDispatcher(log, jobRepo, projectRepo, targetRepo, translationRepo, identity, reconciler, probe, notifier)

	jobsHandler := handlers.NewJobsHandler(log, dispatcher, jobSvc)
	projectsHandler := handlers.NewProjectsHandler(log, projectRepo, targetRepo, gateway)
	segmentsHandler := handlers.NewSegmentsHandler(log, gateway)
	pipelineHandler := handlers.NewPipelineHandler(log, a.hub)
	audioHandler := handlers.NewAudioHandler(log, a.hub)

	a.router = server.NewRouter(log, server.RouterConfig{
		AppEnv:         cfg.AppEnv,
		AllowedOrigins: cfg.AllowedOrigins,
		OtelEnabled:    cfg.OtelEnabled,
	}, jobsHandler, projectsHandler, segmentsHandler, pipelineHandler, audioHandler)

	return a, nil
}

// Run serves HTTP until SIGINT/SIGTERM, then drains with a 10s grace period.
func (a *App) Run() error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.router,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.Log.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (a *App) Close() {
	if a.busCancel != nil {
		a.busCancel()
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.queue != nil {
		_ = a.queue.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.otelShutdown(ctx)
	}
	a.Log.Sync()
}
