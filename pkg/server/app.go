package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AgriPull/internal/handler/api"
	icache "AgriPull/internal/service/cache"
	"AgriPull/internal/usecase"
	pkgch "AgriPull/pkg/clickhouse"
	"AgriPull/pkg/config"
	xhttp "AgriPull/pkg/http"
	pkgkafka "AgriPull/pkg/kafka"
	applogger "AgriPull/pkg/logger"
	"AgriPull/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	collector  *usecase.ObservationCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	handler    *api.PricesEchoHandler
	httpServer *xhttp.Server
	ObsProc    *usecase.ObservationProcessor

	jobQueue    *queue.RedisQueue
	jobs        []queue.Job
	calibration *usecase.CalibrationRunner
	syncer      *usecase.WeatherSyncer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.ObservationCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	handler *api.PricesEchoHandler,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		handler:   handler,
	}
}

// SetJobs wires the background jobs and, when Redis is enabled, a
// single-worker queue consumer. One worker means calibration runs never
// overlap.
func (a *App) SetJobs(bc icache.BytesCache, calibration *usecase.CalibrationRunner, syncer *usecase.WeatherSyncer) {
	a.calibration = calibration
	a.syncer = syncer
	a.jobs = []queue.Job{
		usecase.NewCalibrationJob(calibration),
		usecase.NewWeatherSyncJob(syncer),
		usecase.NewWeatherCleanupJob(syncer),
	}
	if rc, ok := bc.(*icache.RedisCache); ok {
		a.jobQueue = queue.NewRedisConsumer(a.l,
			&queue.QueueConfig{Workers: 1, RetryLimit: 2, RetryDelay: time.Minute},
			rc.Client(), a.jobs)
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.l

	if a.handler != nil && a.collector != nil {
		a.handler.WithFeedStatus(a.collector.IsConnected)
	}
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start collector
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("markets", a.cfg.Feed.Markets))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start job queue and scheduler
	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			l.Error("job queue start error", applogger.Error(err))
			a.jobQueue = nil
		}
	}
	if len(a.jobs) > 0 {
		go a.runScheduler(ctx)
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// runScheduler triggers the background jobs on their configured intervals.
// With the queue available the trigger is an enqueue; otherwise the job runs
// in place.
func (a *App) runScheduler(ctx context.Context) {
	calTicker := time.NewTicker(a.cfg.Calibration.Interval)
	weatherTicker := time.NewTicker(a.cfg.Weather.SyncInterval)
	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer calTicker.Stop()
	defer weatherTicker.Stop()
	defer cleanupTicker.Stop()

	// first weather sync shortly after boot so estimates have an index
	a.trigger(ctx, usecase.JobTypeWeatherSync)

	for {
		select {
		case <-ctx.Done():
			return
		case <-calTicker.C:
			a.trigger(ctx, usecase.JobTypeCalibration)
		case <-weatherTicker.C:
			a.trigger(ctx, usecase.JobTypeWeatherSync)
		case <-cleanupTicker.C:
			a.trigger(ctx, usecase.JobTypeWeatherCleanup)
		}
	}
}

func (a *App) trigger(ctx context.Context, jobType string) {
	if a.jobQueue != nil {
		if err := a.jobQueue.Enqueue(ctx, jobType, nil); err != nil {
			a.l.Error("job enqueue error",
				applogger.String("type", jobType),
				applogger.Error(err))
		}
		return
	}
	for _, j := range a.jobs {
		if j.Type() == jobType {
			if err := j.Handle(ctx, nil); err != nil {
				a.l.Error("job error",
					applogger.String("type", jobType),
					applogger.Error(err))
			}
			return
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.l
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop job queue
	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close observation processor resources (publisher/storage)
	if a.ObsProc != nil {
		a.ObsProc.Close()
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
