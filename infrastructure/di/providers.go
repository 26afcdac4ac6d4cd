package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/commands/bus"
	commandhandlers "github.com/Skozial17/supportchat/application/commands/handlers"
	"github.com/Skozial17/supportchat/application/ports"
	querybus "github.com/Skozial17/supportchat/application/queries/bus"
	queryhandlers "github.com/Skozial17/supportchat/application/queries/handlers"
	"github.com/Skozial17/supportchat/application/services"
	domainconfig "github.com/Skozial17/supportchat/domain/config"
	"github.com/Skozial17/supportchat/infrastructure/config"
	"github.com/Skozial17/supportchat/infrastructure/flows"
	"github.com/Skozial17/supportchat/infrastructure/identity"
	"github.com/Skozial17/supportchat/infrastructure/messaging/eventbridge"
	"github.com/Skozial17/supportchat/infrastructure/persistence/dynamodb"
	"github.com/Skozial17/supportchat/infrastructure/persistence/memory"
	"github.com/Skozial17/supportchat/infrastructure/persistence/resilient"
	"github.com/Skozial17/supportchat/infrastructure/realtime"
	"github.com/Skozial17/supportchat/interfaces/http/rest"
	"github.com/Skozial17/supportchat/interfaces/http/rest/handlers"
	"github.com/Skozial17/supportchat/interfaces/http/rest/middleware"
	"github.com/Skozial17/supportchat/pkg/auth"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/observability"
)

const (
	serviceName        = "supportchat"
	eventRetention     = 90 * 24 * time.Hour
	devJWTSecret       = "development-secret-change-in-production"
	signupLimitPrefix  = "signup"
	streamBufferSize   = 1024
	defaultTokenExpiry = 24 * time.Hour
)

// Storage is the persistence selected by STORAGE_BACKEND. Gateway and Cases
// go through the circuit breaker.
type Storage struct {
	Gateway     ports.PersistenceGateway
	Cases       ports.CaseRepository
	Drivers     ports.DriverRepository
	Connections ports.ConnectionRepository
	EventStore  ports.EventStore
	Locker      ports.Locker
	Breaker     *resilient.Gateway
}

// Ready reports an open circuit breaker as not ready.
func (s *Storage) Ready() error {
	if s.Breaker != nil && s.Breaker.State() == gobreaker.StateOpen {
		return errors.New("case store circuit breaker is open")
	}
	return nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}

	return logger.With(zap.String("service", serviceName)), nil
}

// ProvideAWSConfig creates AWS configuration. With tracing enabled every SDK
// call is recorded as an X-Ray subsegment.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.EnableTracing {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

func ProvideTable(cfg *config.Config) dynamodb.Table {
	return dynamodb.Table{
		Name:          cfg.DynamoDBTable,
		ByOwnerIndex:  cfg.IndexName,
		AllCasesIndex: cfg.GSI2IndexName,
	}
}

// ProvideCollector creates the Prometheus collector served on /metrics.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(strings.ToLower(cfg.MetricsNamespace))
}

// ProvideMetrics creates the CloudWatch publisher; disabled metrics record nothing.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableMetrics || cfg.StorageBackend == config.StorageMemory {
		return observability.NewMetrics(cfg.MetricsNamespace, nil, logger)
	}
	return observability.NewMetrics(cfg.MetricsNamespace, client, logger)
}

func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(cfg.Environment)
}

// ProvideStorage builds the persistence backend
func ProvideStorage(
	cfg *config.Config,
	client *awsdynamodb.Client,
	table dynamodb.Table,
	collector *observability.Collector,
	logger *zap.Logger,
) (*Storage, error) {
	breakerCfg := resilient.DefaultBreakerConfig("case-store")
	breakerCfg.MinRequests = uint32(cfg.BreakerMaxFailures)
	breakerCfg.Timeout = cfg.BreakerOpenTimeout

	switch cfg.StorageBackend {
	case config.StorageMemory:
		store := memory.NewStore()
		breaker := resilient.NewGateway(store, breakerCfg, collector, logger)
		return &Storage{
			Gateway:     breaker,
			Cases:       breaker,
			Drivers:     memory.NewDriverRepository(),
			Connections: memory.NewConnectionRepository(),
			EventStore:  store,
			Locker:      memory.NewLocker(),
			Breaker:     breaker,
		}, nil
	case config.StorageDynamoDB:
		if client == nil {
			return nil, errors.New("dynamodb backend requires a client")
		}
		store := dynamodb.NewCaseStore(client, table, cfg.StreamPollInterval, logger)
		breaker := resilient.NewGateway(store, breakerCfg, collector, logger)
		return &Storage{
			Gateway:     breaker,
			Cases:       breaker,
			Drivers:     dynamodb.NewDriverRepository(client, table, logger),
			Connections: dynamodb.NewConnectionRepository(client, table),
			EventStore:  dynamodb.NewEventStore(client, table, eventRetention, logger),
			Locker:      dynamodb.NewDistributedLock(client, table, logger),
			Breaker:     breaker,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// ProvideFlowCatalog loads the conversation graphs, from FLOWS_FILE when set.
func ProvideFlowCatalog(cfg *config.Config) (ports.FlowCatalog, error) {
	var (
		catalog *flows.Catalog
		err     error
	)
	if cfg.FlowsFile != "" {
		catalog, err = flows.LoadFile(cfg.FlowsFile)
	} else {
		catalog, err = flows.LoadEmbedded()
	}
	if err != nil {
		return nil, err
	}
	return catalog.WithDefaultFlow(cfg.DefaultFlow)
}

// ProvideEventPublisher publishes to EventBridge, or only logs for the memory backend.
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.StorageBackend == config.StorageMemory || cfg.EventBusName == "" {
		return eventbridge.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

func ProvideCache(collector *observability.Collector) *InMemoryCache {
	return NewInMemoryCache(collector)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	cfg *config.Config,
	storage *Storage,
	catalog ports.FlowCatalog,
	publisher ports.EventPublisher,
	cache *InMemoryCache,
	collector *observability.Collector,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	limits *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
		bus.TracingMiddleware(tracer),
	)

	var caseCache ports.Cache
	if cfg.EnableCache {
		caseCache = cache
	}
	caseHandler := commandhandlers.NewCaseCommandHandler(
		storage.Gateway,
		storage.Cases,
		catalog,
		storage.Locker,
		storage.EventStore,
		publisher,
		caseCache,
		collector,
		limits,
		logger,
	)
	if err := caseHandler.Register(commandBus); err != nil {
		return nil, err
	}

	driverHandler := commandhandlers.NewDriverCommandHandler(storage.Drivers, storage.EventStore, publisher, logger)
	if err := driverHandler.Register(commandBus); err != nil {
		return nil, err
	}

	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	cfg *config.Config,
	storage *Storage,
	catalog ports.FlowCatalog,
	cache *InMemoryCache,
	metrics *observability.Metrics,
	limits *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	ttl := 0
	if cfg.EnableCache {
		ttl = cfg.CacheTTLSeconds
	}
	queryBus := querybus.NewQueryBus(
		querybus.NewMetricsMiddleware(metrics),
		querybus.NewCachingMiddleware(cache, ttl),
	)

	caseHandler := queryhandlers.NewCaseQueryHandler(storage.Cases, catalog, storage.Gateway, storage.EventStore, limits, logger)
	if err := caseHandler.Register(queryBus); err != nil {
		return nil, err
	}
	if err := queryhandlers.NewDriverQueryHandler(storage.Drivers, limits).Register(queryBus); err != nil {
		return nil, err
	}
	if err := queryhandlers.NewFlowQueryHandler(catalog).Register(queryBus); err != nil {
		return nil, err
	}

	return queryBus, nil
}

func ProvideTranscriptSync(storage *Storage, logger *zap.Logger) *services.TranscriptSync {
	return services.NewTranscriptSync(storage.Gateway, logger)
}

// ProvideStreamer serves transcript WebSockets from the API server.
func ProvideStreamer(
	cfg *config.Config,
	sync *services.TranscriptSync,
	limits *domainconfig.DomainConfig,
	collector *observability.Collector,
	logger *zap.Logger,
) *realtime.Streamer {
	return realtime.NewStreamer(sync, realtime.StreamConfig{
		ReadBufferSize:  streamBufferSize,
		WriteBufferSize: streamBufferSize,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		IdleTimeout:     limits.StreamIdleTimeout,
	}, collector, logger)
}

// ProvideJWTValidator validates HS256 tokens. Outside production an unset
// secret falls back to a development secret.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
		Audience:      []string{cfg.JWTAudience},
	})
}

// ProvideJWTGenerator issues tokens signed with the same secret the validator
// checks; used by local tooling and tests.
func ProvideJWTGenerator(cfg *config.Config) (*auth.JWTGenerator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = devJWTSecret
	}
	return auth.NewJWTGenerator(secret, cfg.JWTIssuer, []string{cfg.JWTAudience}, defaultTokenExpiry)
}

// ProvideAuthenticator trusts API Gateway identity headers only inside Lambda.
func ProvideAuthenticator(cfg *config.Config, validator *auth.JWTValidator, logger *zap.Logger) *middleware.Authenticator {
	return middleware.NewAuthenticator(
		validator,
		cfg.IsLambda,
		auth.NewIPRateLimiter(cfg.RateLimitBurst*2, cfg.RateLimitRPS*2),
		auth.NewUserRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRPS),
		logger,
	)
}

// ProvideSignupLimiter shares signup quotas across instances through DynamoDB.
func ProvideSignupLimiter(cfg *config.Config, client *awsdynamodb.Client) auth.RateLimiter {
	window := cfg.SignupWindow
	if window <= 0 {
		window = time.Hour
	}
	if cfg.StorageBackend == config.StorageMemory {
		perSecond := float64(cfg.SignupLimit) / window.Seconds()
		return auth.NewTokenBucketLimiter(cfg.SignupLimit, perSecond)
	}
	return auth.NewDistributedRateLimiter(client, cfg.DynamoDBTable, cfg.SignupLimit, window, signupLimitPrefix)
}

func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter mounts the HTTP API.
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	authenticator *middleware.Authenticator,
	streamer *realtime.Streamer,
	signupLimiter auth.RateLimiter,
	storage *Storage,
	collector *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	var streams handlers.Streamer
	if !cfg.IsLambda {
		streams = streamer
	}
	router := rest.NewRouter(rest.RouterConfig{
		Handlers: handlers.Deps{
			CommandBus: commandBus,
			QueryBus:   queryBus,
			Identity:   identity.NewContextProvider(),
			Errors:     errorHandler,
			Logger:     logger,
		},
		Authenticator:  authenticator,
		Streamer:       streams,
		SignupLimiter:  signupLimiter,
		Collector:      collector,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Ready:          storage.Ready,
		Logger:         logger,
	})
	return router.Setup()
}
