package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/clock"
	"connection-pro/internal/infra/store"
	"connection-pro/internal/usecase/analytics"
	"connection-pro/internal/usecase/profiles"
	"connection-pro/internal/usecase/settings"
	"connection-pro/internal/usecase/templates"
)

type fakeChannel struct {
	id        string
	url       string
	mu        sync.Mutex
	sent      []domain.DispatchAction
	closed    bool
	reloads   int
	reloadErr error
	alive     bool
	onClose   func()
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Send(_ context.Context, action domain.DispatchAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.ErrChannelGone
	}
	f.sent = append(f.sent, action)
	return nil
}

func (f *fakeChannel) Ping(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, domain.ErrChannelGone
	}
	return f.alive, nil
}

func (f *fakeChannel) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.reloadErr
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.ErrChannelGone
	}
	f.closed = true
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) actions() []domain.DispatchAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DispatchAction(nil), f.sent...)
}

type fakeOpener struct {
	mu        sync.Mutex
	opened    []*fakeChannel
	byID      map[string]*fakeChannel
	failURLs  map[string]bool
	alive     bool
	reloadErr error
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{byID: make(map[string]*fakeChannel), failURLs: make(map[string]bool), alive: true}
}

func (o *fakeOpener) Open(_ context.Context, url string) (domain.Channel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failURLs[url] {
		return nil, errors.New("navigation failed")
	}
	ch := &fakeChannel{id: fmt.Sprintf("tab-%d", len(o.opened)+1), url: url, alive: o.alive, reloadErr: o.reloadErr}
	o.opened = append(o.opened, ch)
	o.byID[ch.id] = ch
	return ch, nil
}

func (o *fakeOpener) Lookup(_ context.Context, id string) (domain.Channel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.byID[id]
	if !ok || ch.isClosed() {
		return nil, domain.ErrChannelGone
	}
	return ch, nil
}

func (o *fakeOpener) register(ch *fakeChannel) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byID[ch.id] = ch
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

func (o *fakeOpener) last() *fakeChannel {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.opened) == 0 {
		return nil
	}
	return o.opened[len(o.opened)-1]
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	ctxErrs  []error
}

func (n *fakeNotifier) Notify(ctx context.Context, _, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return ctx.Err()
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.RunEvent
}

func (e *fakeEvents) Publish(ctx context.Context, event domain.RunEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) types() []domain.RunEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.RunEventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	statuses []domain.Status
}

func (b *fakeBroadcaster) Broadcast(data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := data.(domain.Status); ok {
		b.statuses = append(b.statuses, st)
	}
}

type harness struct {
	t         *testing.T
	clk       *clock.Fake
	mem       *store.MemoryStore
	writer    *store.Writer
	opener    *fakeOpener
	notifier  *fakeNotifier
	events    *fakeEvents
	broadcast *fakeBroadcaster
	ledger    *analytics.Ledger
	profiles  *profiles.Cache
	templates *templates.Service
	settings  *settings.Service
	ctrl      *Controller
	cfg       Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		clk:       clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		mem:       store.NewMemory(),
		opener:    newFakeOpener(),
		notifier:  &fakeNotifier{},
		events:    &fakeEvents{},
		broadcast: &fakeBroadcaster{},
		cfg:       DefaultConfig(),
	}
	h.writer = store.NewWriter(h.mem, zerolog.Nop())
	h.rebuild()
	return h
}

// rebuild создаёт новый контроллер поверх того же хранилища, как после перезапуска процесса.
func (h *harness) rebuild() {
	h.settings = settings.NewService(h.writer)
	h.templates = templates.NewService(h.writer, nil)
	h.profiles = profiles.New(h.clk, h.writer, h.settings)
	h.ledger = analytics.New(h.clk, time.UTC, h.writer, h.profiles)
	h.ctrl = New(h.cfg, Deps{
		Store:       h.mem,
		Saver:       h.writer,
		Channels:    h.opener,
		Notifier:    h.notifier,
		Events:      h.events,
		Broadcaster: h.broadcast,
		Ledger:      h.ledger,
		Profiles:    h.profiles,
		Templates:   h.templates,
		Settings:    h.settings,
		Clock:       h.clk,
		Logger:      zerolog.Nop(),
	})
}

func (h *harness) start(queue []domain.ProfileRef, delayMs int64, startIndex *int) {
	h.t.Helper()
	err := h.ctrl.Start(context.Background(), domain.RunParams{
		Queue:       queue,
		MessageText: "Hi [Name]",
		TemplateID:  "default",
		DelayMs:     delayMs,
		StartIndex:  startIndex,
	})
	if err != nil {
		h.t.Fatalf("не ожидали ошибку: %v", err)
	}
}

// openAndSend проводит текущий профиль через открытие вкладки и задержку загрузки.
func (h *harness) openAndSend(wait time.Duration) *fakeChannel {
	h.t.Helper()
	before := h.opener.count()
	h.clk.Advance(wait)
	if h.opener.count() != before+1 {
		h.t.Fatalf("ожидали открытие вкладки, открыто %d (было %d)", h.opener.count(), before)
	}
	h.clk.Advance(h.cfg.SettleDelay)
	ch := h.opener.last()
	if len(ch.actions()) == 0 {
		h.t.Fatalf("ожидали отправку действия во вкладку %s", ch.id)
	}
	return ch
}

func (h *harness) sent(profile *domain.ProfileData) {
	h.t.Helper()
	if err := h.ctrl.ConnectionSent(context.Background(), profile); err != nil {
		h.t.Fatalf("не ожидали ошибку: %v", err)
	}
}

func (h *harness) persistedState() domain.RunState {
	h.t.Helper()
	if err := h.writer.Flush(context.Background()); err != nil {
		h.t.Fatalf("не ожидали ошибку: %v", err)
	}
	var st domain.RunState
	ok, err := store.Load(context.Background(), h.mem, domain.RecordRunState, &st)
	if err != nil || !ok {
		h.t.Fatalf("ожидали сохранённое состояние, ok=%v err=%v", ok, err)
	}
	return st
}

func queueOf(n int) []domain.ProfileRef {
	out := make([]domain.ProfileRef, n)
	for i := range out {
		out[i] = domain.ProfileRef(fmt.Sprintf("https://www.linkedin.com/in/profile-%d/", i))
	}
	return out
}

func intPtr(v int) *int { return &v }
