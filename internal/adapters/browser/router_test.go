package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
)

type recordedEvents struct {
	calls   []string
	reason  string
	profile *domain.ProfileData
	err     error
}

func (r *recordedEvents) ConnectionSent(_ context.Context, profile *domain.ProfileData) error {
	r.calls = append(r.calls, "sent")
	r.profile = profile
	return r.err
}

func (r *recordedEvents) ConnectionFailed(_ context.Context, reason string, profile *domain.ProfileData) error {
	r.calls = append(r.calls, "failed")
	r.reason = reason
	r.profile = profile
	return r.err
}

func (r *recordedEvents) HeartbeatResponse(context.Context) {
	r.calls = append(r.calls, "heartbeat")
}

func (r *recordedEvents) ContentUnloading(context.Context) {
	r.calls = append(r.calls, "unloading")
}

func (r *recordedEvents) ChannelClosed(context.Context, string) {
	r.calls = append(r.calls, "closed")
}

func TestDecodePageMessage(t *testing.T) {
	msg, err := decodePageMessage(`{"action":"connectionFailed","failureReason":"limit","profileData":{"profileId":"p1","name":"Ann"}}`)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if msg.Action != domain.PageConnectionFailed || msg.FailureReason != "limit" {
		t.Fatalf("неожиданное сообщение: %+v", msg)
	}
	if msg.ProfileData == nil || msg.ProfileData.ProfileID != "p1" {
		t.Fatalf("ожидали данные профиля, получили %+v", msg.ProfileData)
	}
}

func TestDecodePageMessageRejectsUnknownAction(t *testing.T) {
	if _, err := decodePageMessage(`{"action":"startAutomation"}`); err == nil {
		t.Fatal("ожидали ошибку для неизвестного действия")
	}
	if _, err := decodePageMessage(`not json`); err == nil {
		t.Fatal("ожидали ошибку для битого JSON")
	}
}

func TestRouterDispatchesActions(t *testing.T) {
	events := &recordedEvents{}
	r := router{events: events, log: zerolog.Nop()}
	ctx := context.Background()

	r.route(ctx, "tab-1", `{"action":"connectionSent","profileData":{"profileId":"p1"}}`)
	r.route(ctx, "tab-1", `{"action":"connectionFailed","failureReason":"already_pending"}`)
	r.route(ctx, "tab-1", `{"action":"heartbeatResponse"}`)
	r.route(ctx, "tab-1", `{"action":"contentUnloading"}`)
	r.route(ctx, "tab-1", `{"action":"bogus"}`)

	want := []string{"sent", "failed", "heartbeat", "unloading"}
	if len(events.calls) != len(want) {
		t.Fatalf("ожидали %v, получили %v", want, events.calls)
	}
	for i := range want {
		if events.calls[i] != want[i] {
			t.Fatalf("ожидали %v, получили %v", want, events.calls)
		}
	}
	if events.reason != "already_pending" {
		t.Fatalf("ожидали причину already_pending, получили %q", events.reason)
	}
}

func TestRouterSurvivesRejectedOutcome(t *testing.T) {
	events := &recordedEvents{err: errors.New("not awaiting")}
	r := router{events: events, log: zerolog.Nop()}
	r.route(context.Background(), "tab-1", `{"action":"connectionSent"}`)
	if len(events.calls) != 1 {
		t.Fatalf("ожидали один вызов, получили %v", events.calls)
	}
}

func TestRouterWithoutEventsDropsMessages(t *testing.T) {
	r := router{log: zerolog.Nop()}
	r.route(context.Background(), "tab-1", `{"action":"heartbeatResponse"}`)
}
