package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmladenov/exchange/internal/adapter/cache"
	"github.com/tmladenov/exchange/internal/adapter/pg"
	"github.com/tmladenov/exchange/internal/api/http"
	"github.com/tmladenov/exchange/internal/config"
	"github.com/tmladenov/exchange/internal/core"
	"github.com/tmladenov/exchange/internal/logger"
)

func main() {
	ctx := context.Background()

	cfgPath := os.Getenv("EXCHANGE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := logger.New(cfg.Logging.Level)

	dbpool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	defer dbpool.Close()

	repo := pg.NewRepository(dbpool)

	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisCache.Close()

	engine := core.NewEngine(repo, redisCache, logg, cfg.BookTTL(), cfg.CallTimeout())
	if err := engine.Bootstrap(ctx); err != nil {
		log.Fatalf("failed to bootstrap order book: %v", err)
	}

	server := http.NewHTTPServer(engine, logg, cfg.RateLimitInterval())

	logg.Info("starting HTTP server", "addr", cfg.HTTP.Addr)
	if err := server.Run(cfg.HTTP.Addr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
