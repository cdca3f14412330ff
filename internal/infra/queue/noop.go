package queue

import (
	"context"

	"connection-pro/internal/domain"
)

// NoopEventQueue отбрасывает события, когда публикация выключена.
type NoopEventQueue struct{}

var _ domain.EventPublisher = NoopEventQueue{}

// Publish ничего не делает.
func (NoopEventQueue) Publish(context.Context, domain.RunEvent) error {
	return nil
}
