//go:build wireinject
// +build wireinject

package di

import (
	"SignalDesk/pkg/config"
	"SignalDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories
		ProvideSignalStore,
		ProvideCHPriceHistory,
		ProvidePriceHistory,
		ProvidePriceBook,
		ProvideCurrentPrice,
		ProvideCandleWriter,
		ProvideTickSink,
		ProvideAuditLog,
		ProvideEventSink,

		// Analytics collaborators
		ProvideSentiment,
		ProvidePredictor,

		// Use cases
		ProvideSignalGenerator,
		ProvideCandidateSource,
		ProvideLifecycleManager,
		ProvideReplacementEngine,
		ProvidePoolManager,
		ProvideQueue,
		ProvidePriceCollector,
		ProvideKafkaConsumer,

		// HTTP
		ProvideLimiter,
		ProvideSignalsHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
