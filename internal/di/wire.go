//go:build wireinject
// +build wireinject

package di

import (
	"AgriPull/pkg/config"
	"AgriPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideBytesCache,

		// Repositories
		ProvideMarketRegistry,
		ProvidePriceStore,
		ProvideWeatherStore,
		ProvideStateStore,
		ProvidePublisher,
		ProvideMarketFeed,
		ProvideWeatherProvider,

		// Use cases
		ProvideObservationProcessor,
		ProvideObservationCollector,
		ProvideKafkaObservationsHandler,
		ProvidePriceEstimator,
		ProvideCalibrationRunner,
		ProvideWeatherSyncer,

		// HTTP
		ProvidePricesHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
