package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/mikeydub/erc20-holders-indexer/chain"
	migrate "github.com/mikeydub/erc20-holders-indexer/db"
	"github.com/mikeydub/erc20-holders-indexer/env"
	"github.com/mikeydub/erc20-holders-indexer/service/limiters"
	"github.com/mikeydub/erc20-holders-indexer/service/logger"
	"github.com/mikeydub/erc20-holders-indexer/service/persist/postgres"
	"github.com/mikeydub/erc20-holders-indexer/service/redis"
	"github.com/mikeydub/erc20-holders-indexer/service/rpc"
	"github.com/mikeydub/erc20-holders-indexer/util"
)

// migrationsDir is the directory golang-migrate reads schema migrations from, resolved relative
// to the module root.
const migrationsDir = "db/migrations"

// SetDefaults registers viper defaults for every recognised environment variable.
func SetDefaults() {
	viper.SetDefault("ENV", "local")
	viper.SetDefault("INDEXER_CHAINS", "1")
	viper.SetDefault("INDEXER_MAX_SPAN_DEFAULT", 2000)
	viper.SetDefault("INDEXER_QPS", 10)
	viper.SetDefault("INDEXER_RPC_MIN_DELAY_MS", 0)
	viper.SetDefault("INDEXER_BACKOFF_MS", 1500)
	viper.SetDefault("INITIAL_LOOKBACK_BLOCKS", 50000)
	viper.SetDefault("CHAIN_POLLER_CONFIRMATIONS", 10)
	viper.SetDefault("CHAIN_POLLER_INTERVAL_MS", 5000)
	viper.SetDefault("CHAIN_POLLER_MODE", "live")
	viper.SetDefault("HOLDERS_INDEXER_ONCE", false)
	viper.SetDefault("POSTGRES_HOST", "0.0.0.0")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "")
	viper.SetDefault("POSTGRES_DB", "postgres")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("REDIS_PASS", "")

	viper.SetDefault("SENTRY_DSN", "")
	viper.SetDefault("SENTRY_TRACES_SAMPLE_RATE", 0.2)

	viper.AutomaticEnv()

	env.RegisterValidation("ENV", "required")
}

// initSentry starts the Sentry SDK the span instrumentation in service/rpc and
// service/persist/postgres reports through, a no-op in the local environment.
func initSentry() {
	if env.GetString("ENV") == "local" {
		logger.For(nil).Info("skipping sentry init")
		return
	}

	logger.For(nil).Info("initializing sentry...")

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              env.GetString("SENTRY_DSN"),
		Environment:      env.GetString("ENV"),
		TracesSampleRate: viper.GetFloat64("SENTRY_TRACES_SAMPLE_RATE"),
		AttachStacktrace: true,
	})
	if err != nil {
		logger.For(nil).WithError(err).Fatal("failed to start sentry")
	}
}

// LoadConfigFile loads a local YAML config file for filename/envName, a no-op outside the
// local environment.
func LoadConfigFile(filename, envName string) {
	if env.GetString("ENV") != "local" {
		return
	}

	path, err := util.FindFile(fmt.Sprintf("_config/%s-%s.yaml", filename, envName), 3)
	if err != nil {
		logger.For(nil).WithError(err).Warn("no local config file found, relying on the process environment")
		return
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Sprintf("error reading viper config: %s", err))
	}
}

// Bootstrap holds the long-lived dependencies a cmd/ entrypoint wires up once at startup.
type Bootstrap struct {
	Registry *chain.Registry
	Repos    *postgres.Repositories
	Manager  *Manager
}

// Init applies pending migrations, resolves the chain registry, and builds one rate-limited RPC
// client and ChainWorker per chain.
func Init(ctx context.Context, chainIDs []int64, once bool) *Bootstrap {
	b := InitAPI(ctx, chainIDs)

	if n := env.GetInt("INITIAL_LOOKBACK_BLOCKS"); n > 0 {
		InitialLookback = uint64(n)
	}
	if ms := env.GetInt("INDEXER_BACKOFF_MS"); ms > 0 {
		DefaultBackoff = time.Duration(ms) * time.Millisecond
	}

	// With an explicit min-delay floor the distributed limiter (and its Redis connection) is
	// not needed at all.
	minDelayMs := env.GetInt("INDEXER_RPC_MIN_DELAY_MS")
	var cache *redis.Cache
	if minDelayMs <= 0 {
		cache = redis.NewCache(redis.RPCRateLimitersCache)
	}

	workers := make([]*ChainWorker, 0, len(chainIDs))
	for _, cfg := range b.Registry.All() {
		ethClient := rpc.NewEthClient(cfg.RPCURL)

		var endpointLimiter rpc.Limiter
		if minDelayMs > 0 {
			endpointLimiter = rpc.NewFixedDelayLimiter(time.Duration(minDelayMs) * time.Millisecond)
		} else {
			endpointLimiter = limiters.NewKeyRateLimiter(ctx, cache, fmt.Sprintf("endpoint-%d", cfg.ChainID), int64(cfg.QPS), time.Second)
		}

		client := rpc.NewClient(ethClient, cfg.RPCURL, endpointLimiter)
		workers = append(workers, NewChainWorker(cfg, client, b.Repos, once))
	}

	b.Manager = NewManager(workers)
	return b
}

// InitAPI wires only what the admin/query HTTP surface needs: migrations, the pgx pool, and
// the chain registry. No RPC endpoints are dialed and no workers are built, so a serve-only
// process doesn't require RPC_URL or Redis configuration.
func InitAPI(ctx context.Context, chainIDs []int64) *Bootstrap {
	logger.InitWithGCPDefaults()
	initSentry()

	sqlClient := postgres.MustCreateClient()
	if err := migrate.RunMigrations(sqlClient, migrationsDir); err != nil {
		panic(err)
	}
	sqlClient.Close()

	pgxPool := postgres.NewPgxClient(postgres.WithAppName("erc20-holders-indexer"))

	return &Bootstrap{
		Registry: chain.Load(chainIDs),
		Repos:    postgres.NewRepositories(pgxPool),
	}
}

// InitServer builds the gin engine exposing the admin/query HTTP surface over b's dependencies.
func InitServer(b *Bootstrap) *gin.Engine {
	router := gin.Default()
	return handlersInit(router, b.Registry, b.Repos)
}
