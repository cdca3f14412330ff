package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/metrics"
)

// sender — часть BotAPI, которой достаточно для отправки.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram шлёт уведомления в чат.
type Telegram struct {
	bot    sender
	chatID int64
	log    zerolog.Logger
}

var _ domain.Notifier = (*Telegram)(nil)

// NewTelegram подключается к Bot API.
func NewTelegram(token string, chatID int64, logger zerolog.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("notify: telegram token and chat id required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram init: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("notify: telegram connected")
	return newTelegram(bot, chatID, logger), nil
}

func newTelegram(bot sender, chatID int64, logger zerolog.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, log: logger}
}

// Notify отправляет заголовок и текст одним или несколькими сообщениями.
func (t *Telegram) Notify(ctx context.Context, title, message string) error {
	text := message
	if title != "" {
		text = fmt.Sprintf("*%s*\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, title), tgbotapi.EscapeText(tgbotapi.ModeMarkdown, message))
	}
	for _, part := range SplitMessage(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, part)
		if title != "" {
			msg.ParseMode = tgbotapi.ModeMarkdown
		}
		start := time.Now()
		_, err := t.bot.Send(msg)
		metrics.ObserveNetworkRequest("notify", "send", "telegram", start, err)
		if err != nil {
			return fmt.Errorf("notify: telegram send: %w", err)
		}
	}
	return nil
}

// Log пишет уведомления в лог, когда Telegram не настроен.
type Log struct {
	log zerolog.Logger
}

var _ domain.Notifier = Log{}

// NewLog создаёт уведомитель в лог.
func NewLog(logger zerolog.Logger) Log {
	return Log{log: logger}
}

func (l Log) Notify(_ context.Context, title, message string) error {
	l.log.Info().Str("title", title).Msg("notify: " + message)
	return nil
}
