package di

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/commands/bus"
	"github.com/Skozial17/supportchat/application/ports"
	querybus "github.com/Skozial17/supportchat/application/queries/bus"
	"github.com/Skozial17/supportchat/infrastructure/config"
	"github.com/Skozial17/supportchat/pkg/auth"
	"github.com/Skozial17/supportchat/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	AWS         aws.Config
	DynamoDB    *awsdynamodb.Client
	Storage     *Storage
	Flows       ports.FlowCatalog
	Publisher   ports.EventPublisher
	Cache       *InMemoryCache
	CommandBus  *bus.CommandBus
	QueryBus    *querybus.QueryBus
	Collector   *observability.Collector
	Metrics     *observability.Metrics
	TokenIssuer *auth.JWTGenerator
	Tokens      *auth.JWTValidator
	Router      http.Handler
}

// Start runs background workers until ctx is done.
func (c *Container) Start(ctx context.Context) {
	if c.Config.EnableMetrics {
		go c.Metrics.Run(ctx, time.Minute)
	}
}

// Shutdown releases resources held by the container.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Cache.Close()
	if err := c.Metrics.Flush(ctx); err != nil {
		c.Logger.Warn("Final metrics flush failed", zap.Error(err))
	}
	return c.Logger.Sync()
}
