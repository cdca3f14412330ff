package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию контроллера.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Store struct {
		Driver    string `envconfig:"STORE_DRIVER" default:"redis"`
		KeyPrefix string `envconfig:"STORE_KEY_PREFIX" default:"connection-pro:"`
	} `envconfig:""`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	Browser struct {
		RemoteURL     string `envconfig:"BROWSER_REMOTE_URL"`
		Headless      bool   `envconfig:"BROWSER_HEADLESS" default:"true"`
		Stealth       bool   `envconfig:"BROWSER_STEALTH" default:"true"`
		ContentScript string `envconfig:"CONTENT_SCRIPT_PATH"`
		NavTimeout    time.Duration `envconfig:"BROWSER_NAV_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_NOTIFY_CHAT_ID"`
	} `envconfig:""`

	Notify struct {
		Title string `envconfig:"NOTIFY_TITLE" default:"Connection Pro"`
		Every int    `envconfig:"NOTIFY_EVERY" default:"5"`
	} `envconfig:""`

	Events struct {
		Driver  string `envconfig:"EVENTS_DRIVER" default:"none"`
		AMQPURL string `envconfig:"AMQP_URL"`
		Queue   string `envconfig:"EVENTS_QUEUE" default:"connection_events"`
	} `envconfig:""`

	Timing struct {
		SettleDelay       time.Duration `envconfig:"SETTLE_DELAY" default:"10s"`
		ReloadGrace       time.Duration `envconfig:"RELOAD_GRACE" default:"10s"`
		LostChannelGrace  time.Duration `envconfig:"LOST_CHANNEL_GRACE" default:"5s"`
		StallThreshold    time.Duration `envconfig:"STALL_THRESHOLD" default:"5m"`
		HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"25s"`
		RecoveryInterval  time.Duration `envconfig:"RECOVERY_INTERVAL" default:"1m"`
		AnalyticsFlush    time.Duration `envconfig:"ANALYTICS_FLUSH_INTERVAL" default:"5m"`
	} `envconfig:""`

	TemplatesFile string `envconfig:"TEMPLATES_FILE"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает и проверяет конфиг.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "redis", "memory":
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("PG_DSN обязателен для STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("неизвестный STORE_DRIVER %q", c.Store.Driver)
	}

	c.Events.Driver = strings.ToLower(strings.TrimSpace(c.Events.Driver))
	switch c.Events.Driver {
	case "none", "redis":
	case "rabbitmq":
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL обязателен для EVENTS_DRIVER=rabbitmq")
		}
	default:
		return fmt.Errorf("неизвестный EVENTS_DRIVER %q", c.Events.Driver)
	}

	if c.Timing.HeartbeatInterval <= 0 || c.Timing.RecoveryInterval <= 0 || c.Timing.AnalyticsFlush <= 0 {
		return fmt.Errorf("интервалы мониторинга должны быть положительными")
	}
	if c.Timing.RecoveryInterval <= c.Timing.HeartbeatInterval {
		return fmt.Errorf("RECOVERY_INTERVAL должен быть больше HEARTBEAT_INTERVAL")
	}
	if c.Notify.Every < 0 {
		c.Notify.Every = 0
	}
	return nil
}
