package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/metrics"
)

//go:embed bridge.js
var bridgeJS string

var errNoBrowser = errors.New("browser: no active browser")

// Config настраивает браузер.
type Config struct {
	// RemoteURL — WebSocket адрес внешнего Chrome. Пусто — запуск локального.
	RemoteURL     string
	Headless      bool
	Stealth       bool
	NavTimeout    time.Duration
	ContentScript string
}

// Manager управляет Chrome и открывает вкладки профилей.
type Manager struct {
	cfg    Config
	log    zerolog.Logger
	script string

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	router  router
	tabs    map[string]*Tab
	cancel  context.CancelFunc
}

var _ domain.ChannelOpener = (*Manager)(nil)

// NewManager создаёт менеджер. Скрипт страницы читается из cfg.ContentScript.
func NewManager(cfg Config, logger zerolog.Logger) (*Manager, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	script := bridgeJS
	if cfg.ContentScript != "" {
		data, err := os.ReadFile(cfg.ContentScript)
		if err != nil {
			return nil, fmt.Errorf("browser: read content script: %w", err)
		}
		script += "\n" + string(data)
	}
	return &Manager{
		cfg:    cfg,
		log:    logger,
		script: script,
		router: router{log: logger},
		tabs:   make(map[string]*Tab),
	}, nil
}

// SetEvents задаёт получателя сообщений страниц и событий закрытия вкладок.
func (m *Manager) SetEvents(events domain.ChannelEvents) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.router.events = events
}

// Start запускает или подключает Chrome и начинает следить за закрытием вкладок.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != nil {
		return nil
	}

	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(m.cfg.Headless).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.log.Info().Str("url", wsURL).Msg("browser: launched local chrome")
	} else {
		m.log.Info().Str("url", wsURL).Msg("browser: connecting to remote")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.cleanupLocked()
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		m.log.Warn().Err(err).Msg("browser: target discovery failed")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.watchTargets(watchCtx, b)
	return nil
}

// Close закрывает Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	for id, tab := range m.tabs {
		tab.stop()
		delete(m.tabs, id)
	}
	return m.cleanupLocked()
}

func (m *Manager) cleanupLocked() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}

// Open открывает вкладку профиля, подключает мост к странице и ждёт загрузки.
func (m *Manager) Open(ctx context.Context, url string) (domain.Channel, error) {
	start := time.Now()
	tab, err := m.open(ctx, url)
	metrics.ObserveNetworkRequest("browser", "open", "profile", start, err)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

func (m *Manager) open(ctx context.Context, url string) (*Tab, error) {
	b := m.currentBrowser()
	if b == nil {
		return nil, errNoBrowser
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	tab, err := m.attach(page, url)
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(m.script); err != nil {
		tab.stop()
		_ = page.Close()
		return nil, fmt.Errorf("browser: inject bridge: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		_ = tab.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.log.Warn().Err(err).Str("url", url).Msg("browser: wait load timeout")
	}
	m.log.Debug().Str("channel", tab.id).Str("url", url).Msg("browser: tab opened")
	return tab, nil
}

// Lookup находит ещё открытую вкладку, в том числе оставшуюся от прошлого процесса.
func (m *Manager) Lookup(ctx context.Context, id string) (domain.Channel, error) {
	b := m.currentBrowser()
	if b == nil {
		return nil, errNoBrowser
	}
	info, err := proto.TargetGetTargetInfo{TargetID: proto.TargetTargetID(id)}.Call(b.Context(ctx))
	if err != nil || info.TargetInfo == nil {
		m.forget(id)
		return nil, fmt.Errorf("%w: %s", domain.ErrChannelGone, id)
	}

	m.mu.Lock()
	tab, ok := m.tabs[id]
	m.mu.Unlock()
	if ok {
		return tab, nil
	}

	page, err := b.PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrChannelGone, id)
	}
	tab, err = m.attach(page, info.TargetInfo.URL)
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(m.script); err != nil {
		m.log.Warn().Err(err).Str("channel", id).Msg("browser: inject bridge failed")
	}
	if _, err := page.Context(ctx).Eval(`() => { ` + m.script + ` }`); err != nil {
		m.log.Warn().Err(err).Str("channel", id).Msg("browser: bridge not injected into current document")
	}
	return tab, nil
}

// attach регистрирует биндинг страницы и запускает чтение её сообщений.
func (m *Manager) attach(page *rod.Page, url string) (*Tab, error) {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return nil, fmt.Errorf("browser: add binding: %w", err)
	}
	listenCtx, cancel := context.WithCancel(context.Background())
	tab := &Tab{
		id:      string(page.TargetID),
		url:     url,
		page:    page,
		manager: m,
		cancel:  cancel,
	}

	m.mu.Lock()
	m.tabs[tab.id] = tab
	r := m.router
	m.mu.Unlock()

	go page.Context(listenCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		r.route(listenCtx, tab.id, e.Payload)
	})()
	return tab, nil
}

// watchTargets сообщает контроллеру о вкладках, закрытых не им.
func (m *Manager) watchTargets(ctx context.Context, b *rod.Browser) {
	b.Context(ctx).EachEvent(func(e *proto.TargetTargetDestroyed) {
		id := string(e.TargetID)
		if !m.forget(id) {
			return
		}
		m.log.Info().Str("channel", id).Msg("browser: tab destroyed")
		m.mu.Lock()
		events := m.router.events
		m.mu.Unlock()
		if events != nil {
			events.ChannelClosed(ctx, id)
		}
	})()
}

// forget убирает вкладку из учёта. Возвращает true, если она была известна.
func (m *Manager) forget(id string) bool {
	m.mu.Lock()
	tab, ok := m.tabs[id]
	delete(m.tabs, id)
	m.mu.Unlock()
	if ok {
		tab.stop()
	}
	return ok
}

func (m *Manager) currentBrowser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}
