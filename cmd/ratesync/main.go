package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/ebarrios/centavo/internal/currency"
	"github.com/ebarrios/centavo/internal/infra/gateway/exchangerates"
	"github.com/ebarrios/centavo/internal/infra/postgres"
	infraRedis "github.com/ebarrios/centavo/internal/infra/redis"
	"github.com/ebarrios/centavo/pkg/config"
	"github.com/ebarrios/centavo/pkg/logger"
)

// Batch rate refresh. Meant to be driven by cron; fetches fresh provider
// quotes between every active currency and the base, in both directions.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefault(cfg.Env).WithField("component", "ratesync")

	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	rateCache := infraRedis.NewRateCacheWithTTL(redisClient, cfg.RateCacheTTL, log)
	provider := exchangerates.NewClient(cfg.ExchangeAPIKey, log)
	if cfg.ExchangeBaseURL != "" {
		provider.SetBaseURL(cfg.ExchangeBaseURL)
	}

	svc := currency.NewService(postgres.NewCurrencyRepository(db), rateCache, provider, cfg.BaseCurrency, log)

	result, err := svc.RefreshAllRates(ctx)
	if err != nil {
		log.Error("Rate refresh failed", "error", err)
		os.Exit(1)
	}

	log.Info("Rate refresh finished", "updated", result.Updated, "errors", len(result.Errors))
	for _, e := range result.Errors {
		log.Warn("Rate refresh error", "detail", e)
	}

	if len(result.Errors) > 0 {
		os.Exit(2)
	}
}
