// Package bootstrap wires the cadcore server's dependencies (event
// store, snapshot store, replay engine, caches, outbox publisher) from
// environment configuration into a runnable Service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harborgrid-justin/cadcore/common"
	"github.com/harborgrid-justin/cadcore/common/mlog"
	"github.com/harborgrid-justin/cadcore/common/mmongo"
	"github.com/harborgrid-justin/cadcore/common/mopentelemetry"
	"github.com/harborgrid-justin/cadcore/common/mpostgres"
	"github.com/harborgrid-justin/cadcore/common/mrabbitmq"
	"github.com/harborgrid-justin/cadcore/common/mredis"
	"github.com/harborgrid-justin/cadcore/common/mzap"
	"github.com/harborgrid-justin/cadcore/pkg/aggregate"
	"github.com/harborgrid-justin/cadcore/pkg/cache"
	"github.com/harborgrid-justin/cadcore/pkg/commandbus"
	"github.com/harborgrid-justin/cadcore/pkg/eventstore"
	"github.com/harborgrid-justin/cadcore/pkg/replay"
)

// ApplicationName identifies this service in logs, tracing, and metrics.
const ApplicationName = "cadcore"

// Config is the top-level configuration read from the environment.
type Config struct {
	EnvName  string `env:"ENV_NAME"`
	LogLevel string `env:"LOG_LEVEL"`
	Version  string `env:"VERSION"`

	ServerAddress string `env:"SERVER_ADDRESS"`

	OtelServiceName         string `env:"OTEL_RESOURCE_SERVICE_NAME"`
	OtelLibraryName         string `env:"OTEL_LIBRARY_NAME"`
	OtelServiceVersion      string `env:"OTEL_RESOURCE_SERVICE_VERSION"`
	OtelDeploymentEnv       string `env:"OTEL_RESOURCE_DEPLOYMENT_ENVIRONMENT"`
	OtelColExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTelemetry         bool   `env:"ENABLE_TELEMETRY"`

	PostgresConnectionString string `env:"EVENTSTORE_POSTGRES_CONNECTION_STRING"`
	PostgresConnectionStringReplica string `env:"EVENTSTORE_POSTGRES_CONNECTION_STRING_REPLICA"`
	UseDurableEventStore     bool   `env:"EVENTSTORE_USE_POSTGRES"`

	MongoConnectionString string `env:"SNAPSHOT_MONGO_CONNECTION_STRING"`
	MongoDatabaseName     string `env:"SNAPSHOT_MONGO_DATABASE_NAME"`
	UseDurableSnapshots   bool   `env:"SNAPSHOT_USE_MONGO"`

	RedisConnectionString string `env:"CACHE_REDIS_CONNECTION_STRING"`
	EnableL3Cache          bool   `env:"CACHE_ENABLE_L3"`
	L2CachePath            string `env:"CACHE_L2_PATH"`

	RabbitMQConnectionString string `env:"OUTBOX_RABBITMQ_CONNECTION_STRING"`
	OutboxExchange           string `env:"OUTBOX_EXCHANGE"`
	OutboxRoutingKey         string `env:"OUTBOX_ROUTING_KEY"`
	EnableOutbox             bool   `env:"OUTBOX_ENABLED"`

	SnapshotInterval int64 `env:"SNAPSHOT_EVERY_N_EVENTS"`
}

// Service holds every dependency InitServers wired up, ready for an
// App implementation (cmd/cadcored) to drive.
type Service struct {
	Config    *Config
	Logger    mlog.Logger
	Telemetry *mopentelemetry.Telemetry

	EventStore      eventstore.Store
	SnapshotStore   aggregate.SnapshotStore
	ReplayEngine    *replay.Engine
	Cache           *cache.Manager
	OutboxPublisher *commandbus.OutboxPublisher

	postgres *mpostgres.PostgresConnection
	mongo    *mmongo.MongoConnection
	redis    *mredis.RedisConnection
	rabbitmq *mrabbitmq.RabbitMQConnection
}

// InitServers reads configuration from the environment and wires the
// whole dependency graph.
func InitServers(ctx context.Context) (*Service, error) {
	common.InitLocalEnvConfig()

	cfg := &Config{}
	if err := common.SetConfigFromEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	logger := mzap.InitializeLogger()

	telemetry := (&mopentelemetry.Telemetry{
		LibraryName:               cfg.OtelLibraryName,
		ServiceName:               cfg.OtelServiceName,
		ServiceVersion:            cfg.OtelServiceVersion,
		DeploymentEnv:             cfg.OtelDeploymentEnv,
		CollectorExporterEndpoint: cfg.OtelColExporterEndpoint,
		EnableTelemetry:           cfg.EnableTelemetry,
	}).InitializeTelemetry()

	svc := &Service{Config: cfg, Logger: logger, Telemetry: telemetry}

	if cfg.UseDurableEventStore {
		svc.postgres = &mpostgres.PostgresConnection{
			ConnectionStringPrimary: cfg.PostgresConnectionString,
			ConnectionStringReplica: cfg.PostgresConnectionStringReplica,
			Logger:                  logger,
		}
		svc.EventStore = eventstore.NewPostgres(svc.postgres)
	} else {
		svc.EventStore = eventstore.NewInMemory()
	}

	if cfg.UseDurableSnapshots {
		svc.mongo = &mmongo.MongoConnection{ConnectionStringSource: cfg.MongoConnectionString, Database: cfg.MongoDatabaseName}
		svc.SnapshotStore = aggregate.NewMongoSnapshotStore(svc.mongo, "snapshots")
	} else {
		svc.SnapshotStore = aggregate.NewInMemorySnapshotStore()
	}

	svc.ReplayEngine = replay.NewEngine(svc.EventStore)

	cacheCfg := cache.DefaultConfig()
	cacheCfg.EnableL3 = cfg.EnableL3Cache

	var redisConn *mredis.RedisConnection
	if cfg.EnableL3Cache {
		redisConn = &mredis.RedisConnection{ConnectionStringSource: cfg.RedisConnectionString, Logger: logger}
		svc.redis = redisConn
	}

	l2Path := cfg.L2CachePath
	if l2Path == "" {
		l2Path = "./cadcore-cache.db"
	}

	cacheManager, err := cache.New(cacheCfg, l2Path, redisConn)
	if err != nil {
		return nil, fmt.Errorf("constructing cache manager: %w", err)
	}

	svc.Cache = cacheManager

	if cfg.EnableOutbox {
		svc.rabbitmq = &mrabbitmq.RabbitMQConnection{ConnectionStringSource: cfg.RabbitMQConnectionString, Logger: logger}

		if err := svc.rabbitmq.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connecting to rabbitmq outbox: %w", err)
		}

		svc.OutboxPublisher = commandbus.NewOutboxPublisher(svc.rabbitmq, cfg.OutboxExchange, cfg.OutboxRoutingKey)
	}

	return svc, nil
}

// SnapshotPolicy builds the event-interval snapshot policy the repo
// layer should use, from configuration.
func (s *Service) SnapshotPolicy() aggregate.SnapshotPolicy {
	if s.Config.SnapshotInterval <= 0 {
		return aggregate.Never{}
	}

	return aggregate.EveryNEvents{Interval: uint64(s.Config.SnapshotInterval)}
}

// Shutdown closes the cache and shuts telemetry down, then reports an
// error if that took longer than 10 seconds. The Postgres, Mongo, Redis
// and RabbitMQ connections are not closed here.
func (s *Service) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error

	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache: %w", err))
		}
	}

	if s.Telemetry != nil {
		s.Telemetry.ShutdownTelemetry()
	}

	select {
	case <-shutdownCtx.Done():
		errs = append(errs, fmt.Errorf("shutdown deadline exceeded: %w", shutdownCtx.Err()))
	default:
	}

	return errors.Join(errs...)
}
