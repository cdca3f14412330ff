package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.Store.Driver != "redis" {
		t.Fatalf("ожидали redis по умолчанию, получили %s", cfg.Store.Driver)
	}
	if cfg.Timing.SettleDelay != 10*time.Second {
		t.Fatalf("ожидали задержку загрузки 10s, получили %s", cfg.Timing.SettleDelay)
	}
	if cfg.Timing.StallThreshold != 5*time.Minute {
		t.Fatalf("ожидали порог зависания 5m, получили %s", cfg.Timing.StallThreshold)
	}
	if cfg.Timing.HeartbeatInterval != 25*time.Second || cfg.Timing.RecoveryInterval != time.Minute || cfg.Timing.AnalyticsFlush != 5*time.Minute {
		t.Fatalf("неожиданные интервалы мониторинга: %+v", cfg.Timing)
	}
	if cfg.Notify.Every != 5 {
		t.Fatalf("ожидали уведомление каждые 5 профилей, получили %d", cfg.Notify.Every)
	}
}

func TestParseReadsEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("PG_DSN", "postgres://localhost/connection_pro")
	t.Setenv("TG_BOT_TOKEN", "token")
	t.Setenv("TG_NOTIFY_CHAT_ID", "42")
	t.Setenv("SETTLE_DELAY", "3s")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.Store.Driver != "postgres" {
		t.Fatalf("ожидали нормализованный драйвер, получили %s", cfg.Store.Driver)
	}
	if cfg.Telegram.Token != "token" || cfg.Telegram.ChatID != 42 {
		t.Fatalf("не прочитали telegram: %+v", cfg.Telegram)
	}
	if cfg.Timing.SettleDelay != 3*time.Second {
		t.Fatalf("ожидали 3s, получили %s", cfg.Timing.SettleDelay)
	}
}

func TestParseRejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("PG_DSN", "")
	if _, err := Parse(); err == nil {
		t.Fatal("ожидали ошибку без PG_DSN")
	}
}

func TestParseRejectsUnknownEventsDriver(t *testing.T) {
	t.Setenv("EVENTS_DRIVER", "kafka")
	if _, err := Parse(); err == nil {
		t.Fatal("ожидали ошибку для неизвестного драйвера событий")
	}
}

func TestParseRejectsRecoveryShorterThanHeartbeat(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "2m")
	t.Setenv("RECOVERY_INTERVAL", "1m")
	if _, err := Parse(); err == nil {
		t.Fatal("ожидали ошибку, когда проверка восстановления чаще heartbeat")
	}
}
