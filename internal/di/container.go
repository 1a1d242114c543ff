// Package di builds the application's dependency graph: configuration,
// logging, metrics, tracing, AWS clients, the Manager Facade with its
// per-kind adapter chains, and the completion-surface consumers
// (EventBridge audit publisher, WebSocket notifier).
package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsapigw "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"syncdal/internal/config"
	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/adapters/dynamodb"
	"syncdal/internal/dal/adapters/file"
	"syncdal/internal/dal/adapters/memory"
	supabaseadapter "syncdal/internal/dal/adapters/supabase"
	"syncdal/internal/dal/cache"
	"syncdal/internal/dal/events"
	"syncdal/internal/dal/manager"
	"syncdal/internal/dal/notify"
	"syncdal/internal/dal/queue"
	"syncdal/internal/dal/types"
	"syncdal/internal/httpapi"
	"syncdal/internal/infrastructure/concurrency"
	"syncdal/internal/observability"
	"syncdal/pkg/logging"
)

// Container holds every long-lived dependency.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Pool     *concurrency.WorkerPool
	Manager  *manager.Manager
	Events   *events.Publisher
	Notifier *notify.Notifier
	Handler  http.Handler
}

// Shutdown stops every component in reverse dependency order.
func (c *Container) Shutdown(ctx context.Context) {
	if c.Events != nil {
		c.Events.Stop()
	}
	if c.Notifier != nil {
		c.Notifier.Detach()
	}
	if c.Manager != nil {
		c.Manager.Stop()
	}
	if c.Pool != nil {
		c.Pool.Stop()
	}
	if c.Tracing != nil {
		_ = c.Tracing.Shutdown(ctx)
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// ProvideLogger builds the root logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg)
}

// ProvideMetrics builds the Prometheus collector.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector("syncdal")
}

// ProvideTracing initializes OpenTelemetry when enabled; nil otherwise.
func ProvideTracing(cfg *config.Config) (*observability.TracerProvider, error) {
	if !cfg.Tracing.Enabled {
		return nil, nil
	}
	return observability.InitTracing(observability.TracingConfig{
		ServiceName: "syncdal",
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		EnableXRay:  cfg.Tracing.EnableXRay,
		EnableDebug: cfg.Tracing.EnableDebug,
	})
}

// ProvideWorkerPool builds and starts the shared adapter worker pool.
func ProvideWorkerPool(cfg *config.Config, logger *zap.Logger) *concurrency.WorkerPool {
	pool := concurrency.NewWorkerPool(concurrency.Config{
		MinWorkers:  cfg.Concurrency.MinWorkers,
		MaxWorkers:  cfg.Concurrency.MaxWorkers,
		QueueDepth:  cfg.Concurrency.QueueDepth,
		IdleTimeout: cfg.Concurrency.IdleTimeout.Std(),
	}, logger)
	pool.Start()
	return pool
}

// ProvideAWSConfig loads the shared AWS SDK configuration.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (awsLoadedConfig, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	loaded, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awsLoadedConfig{}, fmt.Errorf("di: loading aws config: %w", err)
	}
	return awsLoadedConfig{loaded}, nil
}

// ProvideDynamoDBClient builds the DynamoDB client, pointed at the local
// endpoint when one is configured.
func ProvideDynamoDBClient(cfg *config.Config, ac awsLoadedConfig) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(ac.Config, func(o *awsdynamodb.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = &cfg.AWS.Endpoint
		}
	})
}

// ProvideEventBridgeClient builds the EventBridge client.
func ProvideEventBridgeClient(cfg *config.Config, ac awsLoadedConfig) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(ac.Config, func(o *awseventbridge.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = &cfg.AWS.Endpoint
		}
	})
}

// ProvideAPIGatewayClient builds the API Gateway Management client against
// the configured WebSocket endpoint; nil when notification is disabled.
func ProvideAPIGatewayClient(cfg *config.Config, ac awsLoadedConfig) *awsapigw.Client {
	if !cfg.Notify.Enabled {
		return nil
	}
	return awsapigw.NewFromConfig(ac.Config, func(o *awsapigw.Options) {
		o.BaseEndpoint = &cfg.Notify.GatewayEndpoint
	})
}

// ProvideSupabaseClient builds the Supabase client; nil when disabled.
func ProvideSupabaseClient(cfg *config.Config) (*supabase.Client, error) {
	if !cfg.Supabase.Enabled {
		return nil, nil
	}
	client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("di: building supabase client: %w", err)
	}
	return client, nil
}

// ProvideManager builds the Manager Facade and attaches each kind's adapter
// chain per the configuration: DynamoDB primary and Supabase replica when
// enabled, the file store when enabled, and the in-memory adapter as the
// development fallback so every queue always has at least one adapter.
func ProvideManager(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
	pool *concurrency.WorkerPool,
	ddb *awsdynamodb.Client,
	sb *supabase.Client,
) (*manager.Manager, error) {
	m := manager.New(logger, metrics)
	m.SetCallTimeout(cfg.DAL.CallTimeout.Std())
	m.SetDefaultCacheParams(cacheParamsFromConfig(cfg.DAL.Cache))

	qp, err := queueParamsFromConfig(cfg.DAL.Queue)
	if err != nil {
		m.Stop()
		return nil, err
	}

	for _, kind := range types.AllKinds() {
		m.SetQueueParams(kind, qp)

		var attached bool
		add := func(ad adapter.Adapter) error {
			if ok := ad.Connect(); !ok {
				return fmt.Errorf("di: adapter for %s failed to connect", kind)
			}
			if _, err := m.AttachAdapter(kind, ad, cfg.DAL.WrapWithCache); err != nil {
				return err
			}
			attached = true
			return nil
		}

		if cfg.DynamoDB.Enabled {
			if err := add(dynamodb.New(kind, ddb, cfg.DynamoDB.TableName, cfg.DynamoDB.IndexName, pool, logger)); err != nil {
				m.Stop()
				return nil, err
			}
		}
		if cfg.Supabase.Enabled && sb != nil {
			if err := add(supabaseadapter.New(kind, sb, cfg.Supabase.Table, pool, logger)); err != nil {
				m.Stop()
				return nil, err
			}
		}
		if cfg.FileStore.Enabled {
			fa := file.New(kind, cfg.FileStore.Dir, pool, logger)
			fa.Build()
			if err := add(fa); err != nil {
				m.Stop()
				return nil, err
			}
		}
		if !attached {
			if err := add(memory.New(kind)); err != nil {
				m.Stop()
				return nil, err
			}
		}
	}
	return m, nil
}

// ProvideEventsPublisher attaches the EventBridge audit trail to the log
// and statistic kinds; nil when disabled.
func ProvideEventsPublisher(
	cfg *config.Config,
	logger *zap.Logger,
	eb *awseventbridge.Client,
	m *manager.Manager,
) *events.Publisher {
	if !cfg.Events.Enabled {
		return nil
	}
	p := events.NewPublisher(eb, cfg.Events.EventBusName, cfg.Events.Source, logger)
	p.Attach(m, types.KindLog)
	p.Attach(m, types.KindStatistic)
	p.Start()
	return p
}

// ProvideNotifier attaches the WebSocket fan-out to the sync-job and
// schedule kinds; nil when disabled.
func ProvideNotifier(
	cfg *config.Config,
	logger *zap.Logger,
	apigw *awsapigw.Client,
	pool *concurrency.WorkerPool,
	m *manager.Manager,
) *notify.Notifier {
	if !cfg.Notify.Enabled || apigw == nil {
		return nil
	}
	n := notify.NewNotifier(apigw, pool, logger)
	n.Attach(m, types.KindSyncJob)
	n.Attach(m, types.KindSchedule)
	return n
}

// ProvideRouter builds the HTTP introspection/config surface.
func ProvideRouter(m *manager.Manager, metrics *observability.Collector, logger *zap.Logger) http.Handler {
	return httpapi.NewRouter(m, metrics, logger).Setup()
}

func cacheParamsFromConfig(c config.CacheParams) cache.Params {
	return cache.Params{
		MaxCommitInterval: c.MaxCommitInterval.Std(),
		MaxCommitUpdates:  c.MaxCommitUpdates,
		MinCommitUpdates:  c.MinCommitUpdates,
		MaxCacheSize:      c.MaxCacheSize,
		AlwaysEvict:       c.AlwaysEvict,
		ClearObjectAge:    c.ClearObjectAge,
	}
}

func queueParamsFromConfig(c config.QueueParams) (queue.Params, error) {
	mode, err := queue.ParseReplicationMode(c.Mode)
	if err != nil {
		return queue.Params{}, err
	}
	action, err := queue.ParseFailureAction(c.FailureAction)
	if err != nil {
		return queue.Params{}, err
	}
	return queue.Params{
		Mode:             mode,
		MaxReadFailures:  c.MaxReadFailures,
		MaxWriteFailures: c.MaxWriteFailures,
		FailureAction:    action,
	}, nil
}

// ApplyConfig pushes hot-reloaded cache/queue/timeout settings into a
// running container; wired to the config watcher in development.
func ApplyConfig(c *Container, cfg *config.Config) {
	c.Manager.SetCallTimeout(cfg.DAL.CallTimeout.Std())
	cp := cacheParamsFromConfig(cfg.DAL.Cache)
	c.Manager.SetDefaultCacheParams(cp)
	for _, kind := range types.AllKinds() {
		for _, info := range c.Manager.GetAdaptersInfo(kind) {
			c.Manager.SetCacheParams(kind, info.AdapterID, cp)
		}
	}
	if qp, err := queueParamsFromConfig(cfg.DAL.Queue); err == nil {
		for _, kind := range types.AllKinds() {
			c.Manager.SetQueueParams(kind, qp)
		}
	}
}

// awsLoadedConfig wraps aws.Config so wire has a distinct provider type.
type awsLoadedConfig struct {
	Config aws.Config
}
