//go:build wireinject
// +build wireinject

package di

import (
	"github.com/louwilcox-cloud/Selling-optionscom/pkg/config"
	"github.com/louwilcox-cloud/Selling-optionscom/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePolygonClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideQuoteStream,
		ProvideCache,

		// Market clock and chain pipeline
		ProvideClock,
		ProvideAssembler,

		// Repositories
		ProvideSnapshotStore,
		ProvideSnapshotPublisher,

		// Use cases
		ProvideSnapshotProcessor,
		ProvideKafkaSnapshotsHandler,
		ProvideQuoteService,
		ProvideQuoteCollector,
		ProvideAnalyzer,
		ProvideExpirationLister,
		ProvideForecaster,

		// HTTP and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
