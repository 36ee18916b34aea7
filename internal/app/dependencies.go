package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/phonebill/internal/billing"
	"github.com/noah-isme/phonebill/internal/cache"
	"github.com/noah-isme/phonebill/internal/config"
)

// KeyPrefix namespaces every Redis key the service writes.
const KeyPrefix = "phonebill:"

// Dependencies enumerates the shared services the API and worker are built from.
type Dependencies struct {
	Redis     *redis.Client
	RedisOpts *redis.Options
	Store     cache.Store
	Calc      *billing.Calculator
}

// Build connects to Redis when cfg.RedisURL is set and configures the calculator.
// A nil Redis means the caller runs without caching and jobs.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	calc, err := billing.NewCalculator(cfg.Tariff, cfg.Parser(), logger.With().Str("component", "billing").Logger())
	if err != nil {
		return nil, fmt.Errorf("configure calculator: %w", err)
	}
	deps := &Dependencies{Calc: calc}
	if cfg.RedisURL == "" {
		return deps, nil
	}
	client, opts, err := ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	deps.Redis = client
	deps.RedisOpts = opts
	deps.Store = cache.Store{R: client, Prefix: KeyPrefix}
	return deps, nil
}

// Service returns a billing service labelled with source for metrics.
func (d *Dependencies) Service(cfg *config.Config, logger zerolog.Logger, source string) *billing.Service {
	svc := &billing.Service{
		Calc:     d.Calc,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
		Source:   source,
	}
	if d.Store.Enabled() {
		svc.Cache = d.Store
	}
	return svc
}

// TaskRedisOpt converts the go-redis options into asynq's connection options.
func (d *Dependencies) TaskRedisOpt() asynq.RedisClientOpt {
	if d.RedisOpts == nil {
		return asynq.RedisClientOpt{}
	}
	return asynq.RedisClientOpt{
		Addr:     d.RedisOpts.Addr,
		Username: d.RedisOpts.Username,
		Password: d.RedisOpts.Password,
		DB:       d.RedisOpts.DB,
	}
}

// Close releases the Redis connection.
func (d *Dependencies) Close() error {
	if d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}

// ConnectRedis parses url, instruments the client with tracing and pings it.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, *redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, opts, nil
}
