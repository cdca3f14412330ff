package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
)

// bindingName — имя CDP-биндинга, через который страница пишет контроллеру.
const bindingName = "__connectionProBinding"

// decodePageMessage разбирает сообщение страницы и проверяет тип действия.
func decodePageMessage(payload string) (domain.PageMessage, error) {
	var msg domain.PageMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return domain.PageMessage{}, fmt.Errorf("decode page message: %w", err)
	}
	switch msg.Action {
	case domain.PageConnectionSent, domain.PageConnectionFailed, domain.PageHeartbeatResponse, domain.PageContentUnloading:
		return msg, nil
	default:
		return domain.PageMessage{}, fmt.Errorf("unknown page action %q", msg.Action)
	}
}

// router передаёт сообщения страниц контроллеру.
type router struct {
	events domain.ChannelEvents
	log    zerolog.Logger
}

func (r router) route(ctx context.Context, channelID, payload string) {
	msg, err := decodePageMessage(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("channel", channelID).Msg("browser: bad page message")
		return
	}
	if r.events == nil {
		return
	}
	r.log.Debug().Str("channel", channelID).Str("action", string(msg.Action)).Msg("browser: page message")
	switch msg.Action {
	case domain.PageConnectionSent:
		err = r.events.ConnectionSent(ctx, msg.ProfileData)
	case domain.PageConnectionFailed:
		err = r.events.ConnectionFailed(ctx, msg.FailureReason, msg.ProfileData)
	case domain.PageHeartbeatResponse:
		r.events.HeartbeatResponse(ctx)
	case domain.PageContentUnloading:
		r.events.ContentUnloading(ctx)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("action", string(msg.Action)).Msg("browser: page message rejected")
	}
}
