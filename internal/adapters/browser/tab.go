package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/metrics"
)

// Tab — вкладка Chrome с подключённым мостом страницы.
type Tab struct {
	id      string
	url     string
	page    *rod.Page
	manager *Manager
	cancel  context.CancelFunc
}

var _ domain.Channel = (*Tab)(nil)

// ID возвращает идентификатор CDP target.
func (t *Tab) ID() string {
	return t.id
}

// Send передаёт действие скрипту страницы.
func (t *Tab) Send(ctx context.Context, action domain.DispatchAction) error {
	start := time.Now()
	res, err := t.page.Context(ctx).Eval(`(msg) => !!(window.__connectionPro && window.__connectionPro.deliver(msg))`, action)
	metrics.ObserveNetworkRequest("browser", "send", "page", start, err)
	if err != nil {
		return fmt.Errorf("browser: deliver action: %w", err)
	}
	if !res.Value.Bool() {
		return domain.ErrChannelNotReady
	}
	return nil
}

// Ping спрашивает скрипт страницы, жив ли он.
func (t *Tab) Ping(ctx context.Context) (bool, error) {
	res, err := t.page.Context(ctx).Eval(`() => !!(window.__connectionPro && window.__connectionPro.ping())`)
	if err != nil {
		return false, fmt.Errorf("browser: ping: %w", err)
	}
	return res.Value.Bool(), nil
}

// Reload перезагружает страницу и ждёт загрузки.
func (t *Tab) Reload(ctx context.Context) error {
	start := time.Now()
	err := t.page.Context(ctx).Reload()
	if err == nil {
		err = t.page.Context(ctx).WaitLoad()
	}
	metrics.ObserveNetworkRequest("browser", "reload", "page", start, err)
	if err != nil {
		return fmt.Errorf("browser: reload: %w", err)
	}
	return nil
}

// Close закрывает вкладку. Закрытие через Close не считается потерей вкладки.
func (t *Tab) Close() error {
	known := t.manager.forget(t.id)
	t.stop()
	if err := t.page.Close(); err != nil {
		if !known {
			return domain.ErrChannelGone
		}
		return fmt.Errorf("browser: close tab: %w", err)
	}
	return nil
}

func (t *Tab) stop() {
	if t.cancel != nil {
		t.cancel()
	}
}
