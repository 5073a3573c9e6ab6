package usecase

import (
	"context"
	"time"

	"AgriPull/pkg/queue"
)

// Queue message types for the background jobs. The scheduler enqueues these;
// the single-worker consumer executes them, which also serializes calibration
// runs against each other.
const (
	JobTypeCalibration    = "calibration.run"
	JobTypeWeatherSync    = "weather.sync"
	JobTypeWeatherCleanup = "weather.cleanup"
)

// CalibrationJob runs a full calibration pass.
type CalibrationJob struct {
	runner *CalibrationRunner
}

func NewCalibrationJob(runner *CalibrationRunner) *CalibrationJob {
	return &CalibrationJob{runner: runner}
}

func (j *CalibrationJob) Name() string { return "calibration" }
func (j *CalibrationJob) Type() string { return JobTypeCalibration }

func (j *CalibrationJob) Handle(ctx context.Context, _ interface{}) error {
	_, err := j.runner.Run(ctx, time.Now().UTC())
	return err
}

// WeatherSyncJob refreshes weather for all geocoded markets.
type WeatherSyncJob struct {
	syncer *WeatherSyncer
}

func NewWeatherSyncJob(syncer *WeatherSyncer) *WeatherSyncJob {
	return &WeatherSyncJob{syncer: syncer}
}

func (j *WeatherSyncJob) Name() string { return "weather-sync" }
func (j *WeatherSyncJob) Type() string { return JobTypeWeatherSync }

func (j *WeatherSyncJob) Handle(ctx context.Context, _ interface{}) error {
	_, err := j.syncer.Sync(ctx, time.Now().UTC())
	return err
}

// WeatherCleanupJob prunes weather readings past retention.
type WeatherCleanupJob struct {
	syncer *WeatherSyncer
}

func NewWeatherCleanupJob(syncer *WeatherSyncer) *WeatherCleanupJob {
	return &WeatherCleanupJob{syncer: syncer}
}

func (j *WeatherCleanupJob) Name() string { return "weather-cleanup" }
func (j *WeatherCleanupJob) Type() string { return JobTypeWeatherCleanup }

func (j *WeatherCleanupJob) Handle(ctx context.Context, _ interface{}) error {
	_, err := j.syncer.Cleanup(ctx, time.Now().UTC())
	return err
}

var (
	_ queue.Job = (*CalibrationJob)(nil)
	_ queue.Job = (*WeatherSyncJob)(nil)
	_ queue.Job = (*WeatherCleanupJob)(nil)
)
