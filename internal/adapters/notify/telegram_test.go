package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifySendsToChat(t *testing.T) {
	bot := &fakeSender{}
	n := newTelegram(bot, 42, zerolog.Nop())

	if err := n.Notify(context.Background(), "Connection Pro", "Processed 5/10 profiles"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("ожидали одно сообщение, получили %d", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 42 || msg.ParseMode != tgbotapi.ModeMarkdown {
		t.Fatalf("неожиданные параметры сообщения: %+v", msg)
	}
	if !strings.HasPrefix(msg.Text, "*Connection Pro*\n") || !strings.Contains(msg.Text, "Processed 5/10 profiles") {
		t.Fatalf("неожиданный текст: %q", msg.Text)
	}
}

func TestTelegramNotifyWithoutTitleIsPlain(t *testing.T) {
	bot := &fakeSender{}
	n := newTelegram(bot, 7, zerolog.Nop())
	if err := n.Notify(context.Background(), "", "plain_text"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if bot.sent[0].ParseMode != "" || bot.sent[0].Text != "plain_text" {
		t.Fatalf("ожидали текст без разметки, получили %+v", bot.sent[0])
	}
}

func TestTelegramNotifyReturnsSendError(t *testing.T) {
	n := newTelegram(&fakeSender{err: errors.New("429")}, 1, zerolog.Nop())
	if err := n.Notify(context.Background(), "t", "m"); err == nil {
		t.Fatal("ожидали ошибку отправки")
	}
}

func TestNewTelegramRequiresCredentials(t *testing.T) {
	if _, err := NewTelegram("", 0, zerolog.Nop()); err == nil {
		t.Fatal("ожидали ошибку без токена")
	}
}
