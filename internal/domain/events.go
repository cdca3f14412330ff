package domain

import (
	"context"
	"time"
)

// RunEventType описывает тип события прогона.
type RunEventType string

const (
	// EventRunStarted — прогон запущен.
	EventRunStarted RunEventType = "run_started"
	// EventConnectionSent — запрос на контакт отправлен.
	EventConnectionSent RunEventType = "connection_sent"
	// EventConnectionFailed — страница сообщила об ошибке.
	EventConnectionFailed RunEventType = "connection_failed"
	// EventChannelLost — вкладка закрыта извне, профиль будет обработан повторно.
	EventChannelLost RunEventType = "channel_lost"
	// EventStallRecovery — сработало восстановление после зависания.
	EventStallRecovery RunEventType = "stall_recovery"
	// EventRunStopped — прогон остановлен.
	EventRunStopped RunEventType = "run_stopped"
	// EventRunCompleted — очередь обработана.
	EventRunCompleted RunEventType = "run_completed"
)

// RunEvent — событие прогона для внешних потребителей.
type RunEvent struct {
	ID         string       `json:"id"`
	RunID      string       `json:"run_id"`
	Type       RunEventType `json:"type"`
	Index      int          `json:"index"`
	Total      int          `json:"total"`
	Reason     string       `json:"reason,omitempty"`
	ProfileID  string       `json:"profile_id,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// EventPublisher публикует события прогона.
type EventPublisher interface {
	Publish(ctx context.Context, event RunEvent) error
}

// PageAction — тип сообщения от скрипта страницы.
type PageAction string

const (
	// PageConnectionSent — запрос на контакт отправлен.
	PageConnectionSent PageAction = "connectionSent"
	// PageConnectionFailed — запрос отправить не удалось.
	PageConnectionFailed PageAction = "connectionFailed"
	// PageHeartbeatResponse — ответ на heartbeat.
	PageHeartbeatResponse PageAction = "heartbeatResponse"
	// PageContentUnloading — страница выгружается.
	PageContentUnloading PageAction = "contentUnloading"
)

// PageMessage — сообщение от скрипта страницы.
type PageMessage struct {
	Action        PageAction   `json:"action"`
	ProfileData   *ProfileData `json:"profileData,omitempty"`
	FailureReason string       `json:"failureReason,omitempty"`
}
