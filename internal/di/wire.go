//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"syncdal/internal/config"
)

// SuperSet is the provider set the container is built from.
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracing,
	ProvideWorkerPool,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideAPIGatewayClient,
	ProvideSupabaseClient,
	ProvideManager,
	ProvideEventsPublisher,
	ProvideNotifier,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer builds the full dependency graph.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
