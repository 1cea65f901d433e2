// Command hub runs the repository hub: the HTTP API, the async
// download-stats consumer, and the VOS reconciliation loop, all under
// one launcher.Launcher, grounded on the teacher's cmd/app/main.go
// bootstrap-then-launcher-Run shape.
package main

import (
	"context"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/kohakuhub/hub/internal/admin"
	"github.com/kohakuhub/hub/internal/commit"
	"github.com/kohakuhub/hub/internal/config"
	"github.com/kohakuhub/hub/internal/fallback"
	"github.com/kohakuhub/hub/internal/httpapi"
	"github.com/kohakuhub/hub/internal/logging"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/metadata/postgres"
	"github.com/kohakuhub/hub/internal/platform/launcher"
	"github.com/kohakuhub/hub/internal/reconcile"
	"github.com/kohakuhub/hub/internal/resolve"
	"github.com/kohakuhub/hub/internal/stats"
	"github.com/kohakuhub/hub/internal/storage/ros"
	"github.com/kohakuhub/hub/internal/storage/vos"
)

func main() {
	config.LoadDotEnvOnce()

	logger, err := logging.NewProduction()
	if err != nil {
		os.Stderr.WriteString("hub: failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	defer logger.Sync()

	cfg, err := config.New()
	if err != nil {
		logger.Fatalf("hub: config: %s", err)
	}

	ctx := context.Background()

	conn := &postgres.Connection{
		Backend: postgres.Backend(cfg.DBBackend),
		DSN:     cfg.DatabaseURL,
		Logger:  logger,
	}

	if err := conn.Connect(ctx); err != nil {
		logger.Fatalf("hub: metadata store: %s", err)
	}

	store := postgres.NewStore(conn, logger)

	vosClient := vos.NewClient(vos.Config{
		Endpoint: cfg.LakeFSEndpoint, AccessKey: cfg.LakeFSAccessKey, SecretKey: cfg.LakeFSSecretKey,
	})

	rosClient, err := ros.NewClient(ctx, ros.Config{
		Endpoint: cfg.S3Endpoint, Access: cfg.S3Access, Secret: cfg.S3Secret,
		Region: cfg.S3Region, Bucket: cfg.S3Bucket, UseSSL: cfg.S3UseSSL,
	})
	if err != nil {
		logger.Fatalf("hub: raw object store: %s", err)
	}

	locker := commitLocker(cfg, conn, logger)

	commitEngine := &commit.Engine{
		Store: store, VOS: vosClient, ROS: rosClient, Locker: locker, Logger: logger,
		DefaultThreshold: cfg.LFSThresholdBytes, BaseURL: cfg.BaseURL,
	}

	var fallbackProxy *fallback.Proxy

	var rdb *redis.Client

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("hub: redis url: %s", err)
		}

		rdb = redis.NewClient(opts)
	}

	if cfg.FallbackEnabled {
		if rdb == nil {
			logger.Fatalf("hub: KOHAKU_HUB_FALLBACK_ENABLED requires KOHAKU_HUB_REDIS_URL")
		}

		cache := fallback.NewCache(rdb, time.Duration(cfg.FallbackCacheTTLSeconds)*time.Second)
		cipher := fallback.NewTokenCipher(cfg.SessionSecret)
		sources := fallbackSources(cfg.FallbackSources)
		timeout := time.Duration(cfg.FallbackTimeoutSeconds) * time.Second

		fallbackProxy = fallback.NewProxy(store, cache, cipher, timeout, sources)
	}

	resolveEngine := &resolve.Engine{Store: store, VOS: vosClient, ROS: rosClient}
	if fallbackProxy != nil {
		resolveEngine.Fallback = fallbackProxy
	}

	var statsProducer *stats.Producer

	var amqpConn *amqp.Connection

	if cfg.RabbitMQURL != "" {
		amqpConn, err = amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatalf("hub: rabbitmq: %s", err)
		}

		defer amqpConn.Close()

		ch, err := amqpConn.Channel()
		if err != nil {
			logger.Fatalf("hub: rabbitmq channel: %s", err)
		}

		statsProducer, err = stats.NewProducer(ch)
		if err != nil {
			logger.Fatalf("hub: stats producer: %s", err)
		}
	}

	var adminConsole *admin.Console

	if cfg.AdminEnabled {
		roConn := &postgres.Connection{
			Backend: postgres.Backend(cfg.DBBackend), DSN: cfg.DatabaseURLReadonly, Logger: logger,
		}

		if err := roConn.Connect(ctx); err != nil {
			logger.Fatalf("hub: admin readonly connection: %s", err)
		}

		adminConsole, err = admin.NewConsole(ctx, cfg.AdminSecretToken, roConn.DB)
		if err != nil {
			logger.Fatalf("hub: admin console: %s", err)
		}
	}

	handlers := &httpapi.Handlers{
		Store: store, VOS: vosClient, ROS: rosClient, Commit: commitEngine, Resolve: resolveEngine,
		Fallback: fallbackProxy, Stats: statsProducer, Admin: adminConsole, Dedup: rdb,
		Config: cfg, Logger: logger,
	}

	app := httpapi.NewRouter(handlers)
	server := httpapi.NewServer(app, ":8000")

	l := launcher.New(launcher.WithLogger(logger), launcher.RunApp("http", server))

	if amqpConn != nil {
		ch, err := amqpConn.Channel()
		if err != nil {
			logger.Fatalf("hub: rabbitmq consumer channel: %s", err)
		}

		consumer := stats.NewConsumer(ch, store, logger)
		l.Add("stats-consumer", consumer)
	}

	l.Add("reconcile", &reconcile.Reconciler{Store: store, VOS: vosClient, Logger: logger, Interval: time.Minute})

	l.Run()
}

// commitLocker picks the commit-serialization strategy: a single
// worker process needs only an in-memory mutex, while cfg.Workers > 1
// requires a cross-process Postgres advisory lock (spec §5).
func commitLocker(cfg *config.Config, conn *postgres.Connection, logger logging.Logger) commit.Locker {
	if cfg.Workers <= 1 || cfg.DBBackend != "postgres" {
		return commit.NewMutexLocker()
	}

	return commit.NewPGAdvisoryLocker(conn.DB)
}

// fallbackSources turns the configured list of upstream base URLs into
// priority-ordered Sources, defaulting every entry to the HuggingFace
// wire shape (spec §4.H names no other upstream shape as configurable
// today).
func fallbackSources(urls []string) []fallback.Source {
	sources := make([]fallback.Source, 0, len(urls))

	for i, u := range urls {
		sources = append(sources, fallback.Source{
			Name: u, URL: u, Type: metadata.SourceHuggingFace, Priority: i,
		})
	}

	return sources
}
