package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/clock"
	"connection-pro/internal/infra/config"
	"connection-pro/internal/infra/store"
	"connection-pro/internal/usecase/analytics"
)

func main() {
	var (
		outPath     string
		rangeFilter string
	)
	flag.StringVar(&outPath, "out", "", "Path to the CSV file (stdout when empty)")
	flag.StringVar(&rangeFilter, "range", analytics.RangeAll, "Number of days to export or 'all'")
	flag.Parse()

	cfg := config.Load()
	loc, err := clock.LoadLocation(cfg.TZ)
	if err != nil {
		log.Fatal().Err(err).Msg("analytics-export: invalid TZ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var kv domain.Store
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := store.Connect(ctx, cfg.PGDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("analytics-export: failed to connect to database")
		}
		defer pool.Close()
		kv = store.NewPostgres(pool, cfg.Store.KeyPrefix)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		kv = store.NewRedis(rdb, cfg.Store.KeyPrefix)
	default:
		log.Fatal().Str("driver", cfg.Store.Driver).Msg("analytics-export: store driver has no persisted data")
	}

	var stored domain.Analytics
	found, err := store.Load(ctx, kv, domain.RecordAnalytics, &stored)
	if err != nil {
		log.Fatal().Err(err).Msg("analytics-export: failed to load analytics")
	}
	if !found {
		log.Fatal().Msg("analytics-export: no data to export")
	}

	ledger := analytics.New(clock.New(), loc, nil, nil)
	ledger.Load(stored)
	view, err := ledger.Query(rangeFilter)
	if err != nil {
		log.Fatal().Err(err).Str("range", rangeFilter).Msg("analytics-export: invalid range")
	}
	csv, err := analytics.FormatCSV(view)
	if errors.Is(err, analytics.ErrNoData) {
		log.Fatal().Msg("analytics-export: no data to export")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("analytics-export: failed to format csv")
	}

	if outPath == "" {
		_, _ = os.Stdout.WriteString(csv)
		return
	}
	if err := os.WriteFile(outPath, []byte(csv), 0o644); err != nil {
		log.Fatal().Err(err).Msg("analytics-export: failed to write file")
	}
	log.Info().Str("file", outPath).Msg("analytics-export: done")
}
