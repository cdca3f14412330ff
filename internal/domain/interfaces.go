package domain

import (
	"context"
	"errors"
)

// ErrNotFound возвращается хранилищем, если запись отсутствует.
var ErrNotFound = errors.New("record not found")

// ErrChannelNotReady возвращается, если страница ещё не готова принять действие.
var ErrChannelNotReady = errors.New("channel not ready")

// ErrChannelGone возвращается, если вкладка уже закрыта.
var ErrChannelGone = errors.New("channel gone")

// Имена записей в хранилище.
const (
	RecordRunState  = "run_state"
	RecordAnalytics = "analytics"
	RecordProfiles  = "profiles"
	RecordTemplates = "templates"
	RecordSettings  = "settings"
)

// Store — долговременное хранилище ключ-значение без транзакций.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RecordSaver сохраняет запись без ожидания результата.
type RecordSaver interface {
	Save(key string, value any)
}

// Channel — вкладка браузера, через которую обрабатывается один профиль.
type Channel interface {
	ID() string
	Send(ctx context.Context, action DispatchAction) error
	Ping(ctx context.Context) (bool, error)
	Reload(ctx context.Context) error
	Close() error
}

// ChannelOpener открывает вкладки и ищет уже открытые.
type ChannelOpener interface {
	Open(ctx context.Context, url string) (Channel, error)
	Lookup(ctx context.Context, id string) (Channel, error)
}

// ChannelEvents принимает сигналы от страницы и от браузера.
type ChannelEvents interface {
	ConnectionSent(ctx context.Context, profile *ProfileData) error
	ConnectionFailed(ctx context.Context, reason string, profile *ProfileData) error
	HeartbeatResponse(ctx context.Context)
	ContentUnloading(ctx context.Context)
	ChannelClosed(ctx context.Context, id string)
}

// Notifier показывает уведомления пользователю.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// StatusBroadcaster рассылает статус всем подписчикам, доставка не гарантируется.
type StatusBroadcaster interface {
	Broadcast(data any)
}

// ProfileSink кэширует данные профилей.
type ProfileSink interface {
	StoreProfile(profile ProfileData)
}
