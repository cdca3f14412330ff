package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"connection-pro/internal/adapters/api"
	"connection-pro/internal/adapters/browser"
	"connection-pro/internal/adapters/notify"
	"connection-pro/internal/domain"
	"connection-pro/internal/infra/clock"
	"connection-pro/internal/infra/config"
	httpinfra "connection-pro/internal/infra/http"
	applog "connection-pro/internal/infra/log"
	"connection-pro/internal/infra/metrics"
	"connection-pro/internal/infra/queue"
	"connection-pro/internal/infra/store"
	"connection-pro/internal/usecase/analytics"
	"connection-pro/internal/usecase/automation"
	"connection-pro/internal/usecase/profiles"
	"connection-pro/internal/usecase/settings"
	"connection-pro/internal/usecase/templates"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	loc, err := clock.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("controller: неверная таймзона")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	var rdb *redis.Client
	if cfg.Store.Driver == "redis" || cfg.Events.Driver == "redis" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	kv, closeStore := openStore(ctx, cfg, rdb, logger)
	defer closeStore()

	writer := store.NewWriter(kv, applog.Component(logger, "store"))
	writerCtx, cancelWriter := context.WithCancel(context.Background())
	defer cancelWriter()
	go writer.Run(writerCtx)

	events, closeEvents := openEvents(cfg, rdb, logger)
	defer closeEvents()

	clk := clock.New()
	settingsSvc := settings.NewService(writer)
	profileCache := profiles.New(clk, writer, settingsSvc)
	ledger := analytics.New(clk, loc, writer, profileCache)
	seed, err := templates.LoadSeedFile(cfg.TemplatesFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("controller: не удалось прочитать шаблоны")
	}
	templateSvc := templates.NewService(writer, seed)

	browserMgr, err := browser.NewManager(browser.Config{
		RemoteURL:     cfg.Browser.RemoteURL,
		Headless:      cfg.Browser.Headless,
		Stealth:       cfg.Browser.Stealth,
		NavTimeout:    cfg.Browser.NavTimeout,
		ContentScript: cfg.Browser.ContentScript,
	}, applog.Component(logger, "browser"))
	if err != nil {
		logger.Fatal().Err(err).Msg("controller: браузер не настроен")
	}
	if err := browserMgr.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("controller: браузер не запустился")
	}
	defer browserMgr.Close()

	broadcaster := httpinfra.NewBroadcaster(applog.Component(logger, "sse"))

	ctrl := automation.New(automation.Config{
		SettleDelay:       cfg.Timing.SettleDelay,
		ReloadGrace:       cfg.Timing.ReloadGrace,
		LostChannelGrace:  cfg.Timing.LostChannelGrace,
		StallThreshold:    cfg.Timing.StallThreshold,
		HeartbeatInterval: cfg.Timing.HeartbeatInterval,
		RecoveryInterval:  cfg.Timing.RecoveryInterval,
		AnalyticsFlush:    cfg.Timing.AnalyticsFlush,
		NotifyEvery:       cfg.Notify.Every,
		NotifyTitle:       cfg.Notify.Title,
	}, automation.Deps{
		Store:       kv,
		Saver:       writer,
		Channels:    browserMgr,
		Notifier:    newNotifier(cfg, logger),
		Events:      events,
		Broadcaster: broadcaster,
		Ledger:      ledger,
		Profiles:    profileCache,
		Templates:   templateSvc,
		Settings:    settingsSvc,
		Clock:       clk,
		Logger:      applog.Component(logger, "automation"),
	})
	browserMgr.SetEvents(ctrl)

	if err := ctrl.Restore(ctx); err != nil {
		logger.Error().Err(err).Msg("controller: восстановление состояния не удалось")
	}

	server := httpinfra.NewServer(applog.Component(logger, "http"))
	api.NewHandler(ctrl, ledger, templateSvc, settingsSvc, broadcaster.Handler(func() any {
		return ctrl.Status()
	}), applog.Component(logger, "api")).Mount(server.Router)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("controller: http сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("controller: остановка")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("controller: http shutdown")
	}
	ctrl.FlushAnalytics()
	if err := writer.Flush(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("controller: не все записи сохранены")
	}
}

func openStore(ctx context.Context, cfg config.AppConfig, rdb *redis.Client, logger zerolog.Logger) (domain.Store, func()) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := store.Connect(ctx, cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("controller: нет подключения к БД")
		}
		return store.NewPostgres(pool, cfg.Store.KeyPrefix), pool.Close
	case "memory":
		logger.Warn().Msg("controller: состояние хранится только в памяти")
		return store.NewMemory(), func() {}
	default:
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("controller: нет подключения к redis")
		}
		return store.NewRedis(rdb, cfg.Store.KeyPrefix), func() {}
	}
}

func openEvents(cfg config.AppConfig, rdb *redis.Client, logger zerolog.Logger) (domain.EventPublisher, func()) {
	switch cfg.Events.Driver {
	case "rabbitmq":
		q, err := queue.NewRabbitEventQueue(cfg.Events.AMQPURL, cfg.Events.Queue)
		if err != nil {
			logger.Fatal().Err(err).Msg("controller: нет подключения к rabbitmq")
		}
		return q, func() {
			if err := q.Close(); err != nil {
				logger.Warn().Err(err).Msg("controller: rabbitmq close")
			}
		}
	case "redis":
		return queue.NewRedisEventQueue(rdb, cfg.Store.KeyPrefix+cfg.Events.Queue), func() {}
	default:
		return queue.NoopEventQueue{}, func() {}
	}
}

func newNotifier(cfg config.AppConfig, logger zerolog.Logger) domain.Notifier {
	notifyLog := applog.Component(logger, "notify")
	if cfg.Telegram.Token == "" {
		return notify.NewLog(notifyLog)
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, notifyLog)
	if err != nil {
		logger.Warn().Err(err).Msg("controller: telegram недоступен, уведомления пишутся в лог")
		return notify.NewLog(notifyLog)
	}
	return tg
}
