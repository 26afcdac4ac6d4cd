//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/Skozial17/supportchat/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideTable,
	ProvideCollector,
	ProvideMetrics,
	ProvideTracer,
	ProvideDomainConfig,
	ProvideStorage,
	ProvideFlowCatalog,
	ProvideEventPublisher,
	ProvideCache,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideTranscriptSync,
	ProvideStreamer,
	ProvideJWTValidator,
	ProvideJWTGenerator,
	ProvideAuthenticator,
	ProvideSignupLimiter,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
