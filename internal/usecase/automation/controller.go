package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/clock"
	"connection-pro/internal/infra/metrics"
	"connection-pro/internal/usecase/analytics"
	"connection-pro/internal/usecase/monitor"
	"connection-pro/internal/usecase/profiles"
	"connection-pro/internal/usecase/settings"
	"connection-pro/internal/usecase/templates"
)

// ErrAlreadyRunning возвращается при запуске во время активного прогона.
var ErrAlreadyRunning = errors.New("run already in progress")

const (
	channelOpenFailedReason = "channel_open_failed"
	defaultOpTimeout        = 30 * time.Second
)

// Config — тайминги и параметры уведомлений контроллера.
type Config struct {
	SettleDelay       time.Duration
	ReloadGrace       time.Duration
	LostChannelGrace  time.Duration
	StallThreshold    time.Duration
	HeartbeatInterval time.Duration
	RecoveryInterval  time.Duration
	AnalyticsFlush    time.Duration
	NotifyEvery       int
	NotifyTitle       string
	OpTimeout         time.Duration
}

// DefaultConfig возвращает тайминги по умолчанию.
func DefaultConfig() Config {
	return Config{
		SettleDelay:       10 * time.Second,
		ReloadGrace:       10 * time.Second,
		LostChannelGrace:  5 * time.Second,
		StallThreshold:    5 * time.Minute,
		HeartbeatInterval: 25 * time.Second,
		RecoveryInterval:  time.Minute,
		AnalyticsFlush:    5 * time.Minute,
		NotifyEvery:       5,
		NotifyTitle:       "Connection Pro",
		OpTimeout:         defaultOpTimeout,
	}
}

// Deps — зависимости контроллера.
type Deps struct {
	Store       domain.Store
	Saver       domain.RecordSaver
	Channels    domain.ChannelOpener
	Notifier    domain.Notifier
	Events      domain.EventPublisher
	Broadcaster domain.StatusBroadcaster
	Ledger      *analytics.Ledger
	Profiles    *profiles.Cache
	Templates   *templates.Service
	Settings    *settings.Service
	Clock       clock.Clock
	Logger      zerolog.Logger
}

// Controller обходит очередь профилей по одному. Каждая операция выполняется
// под одним мьютексом, внешние вызовы (вкладки, уведомления, события)
// выполняются после его освобождения.
type Controller struct {
	cfg       Config
	store     domain.Store
	saver     domain.RecordSaver
	channels  domain.ChannelOpener
	notifier  domain.Notifier
	events    domain.EventPublisher
	broadcast domain.StatusBroadcaster
	ledger    *analytics.Ledger
	profiles  *profiles.Cache
	templates *templates.Service
	settings  *settings.Service
	clock     clock.Clock
	log       zerolog.Logger
	monitor   *monitor.Monitor

	mu      sync.Mutex
	state   domain.RunState
	gen     uint64
	channel domain.Channel
	opening bool
	timer   clock.Timer
	seq     uint64
}

var _ domain.ChannelEvents = (*Controller)(nil)

// New создаёт контроллер и его монитор живости.
func New(cfg Config, deps Deps) *Controller {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	c := &Controller{
		cfg:       cfg,
		store:     deps.Store,
		saver:     deps.Saver,
		channels:  deps.Channels,
		notifier:  deps.Notifier,
		events:    deps.Events,
		broadcast: deps.Broadcaster,
		ledger:    deps.Ledger,
		profiles:  deps.Profiles,
		templates: deps.Templates,
		settings:  deps.Settings,
		clock:     deps.Clock,
		log:       deps.Logger,
		state:     domain.NewRunState(),
	}
	c.monitor = monitor.New(c, deps.Clock, monitor.Intervals{
		Heartbeat:      cfg.HeartbeatInterval,
		Recovery:       cfg.RecoveryInterval,
		AnalyticsFlush: cfg.AnalyticsFlush,
	}, deps.Logger)
	return c
}

// effects — внешние вызовы, накопленные за ход и выполняемые без блокировки.
type effects []func(ctx context.Context)

func (fx *effects) add(f func(ctx context.Context)) {
	*fx = append(*fx, f)
}

// runEffects выполняет внешние вызовы хода. Каждый вызов получает свой таймаут
// и не наследует отмену контекста вызывающего.
func (c *Controller) runEffects(parent context.Context, fx effects) {
	base := context.WithoutCancel(parent)
	for _, f := range fx {
		ctx, cancel := context.WithTimeout(base, c.cfg.OpTimeout)
		f(ctx)
		cancel()
	}
}

// Start запускает прогон очереди.
func (c *Controller) Start(ctx context.Context, params domain.RunParams) error {
	var fx effects
	c.mu.Lock()
	if c.state.IsRunning {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}

	queue := append([]domain.ProfileRef(nil), params.Queue...)
	index := c.startIndexLocked(queue, params.StartIndex)
	templateID := params.TemplateID
	if templateID == "" {
		templateID = domain.DefaultTemplateID
	}
	message := params.MessageText
	if strings.TrimSpace(message) == "" && c.templates != nil {
		if body, ok := c.templates.Body(templateID); ok {
			message = body
		}
	}
	delay := params.DelayMs
	if delay < 0 {
		delay = 0
	}

	c.resetRuntimeLocked(&fx)
	now := c.clock.Now()
	c.state = domain.RunState{
		RunID:        uuid.NewString(),
		IsRunning:    true,
		Phase:        domain.PhaseDispatching,
		Queue:        queue,
		CurrentIndex: index,
		ResumeIndex:  index,
		LastActiveAt: now,
		MessageText:  message,
		TemplateID:   templateID,
		DelayMs:      delay,
	}

	if len(queue) == 0 {
		c.log.Info().Msg("automation: empty queue, run completed")
		c.state.IsRunning = false
		c.state.Phase = domain.PhaseCompleted
		c.persistLocked()
		c.broadcastLocked(&fx)
		c.mu.Unlock()
		c.runEffects(ctx, fx)
		return nil
	}

	c.ledger.MarkStarted(now)
	c.ledger.Persist()
	c.log.Info().Str("run", c.state.RunID).Int("total", len(queue)).Int("index", index).Msg("automation: run started")
	c.notifyLocked(&fx, fmt.Sprintf("Starting to send connections to %d profiles", len(queue)))
	c.publishLocked(&fx, domain.EventRunStarted, "", "")
	c.monitor.Arm()
	c.scheduleDispatchLocked(0, domain.PhaseDispatching)
	c.persistLocked()
	c.broadcastLocked(&fx)
	c.mu.Unlock()

	c.runEffects(ctx, fx)
	return nil
}

// Stop останавливает прогон, сохраняя точку продолжения.
func (c *Controller) Stop(ctx context.Context) error {
	var fx effects
	c.mu.Lock()
	if !c.state.IsRunning {
		c.mu.Unlock()
		return nil
	}
	c.resetRuntimeLocked(&fx)
	c.state.IsRunning = false
	c.state.Phase = domain.PhaseStopped
	c.state.ResumeIndex = c.state.CurrentIndex
	c.ledger.MarkEnded(c.clock.Now())
	c.ledger.Persist()
	c.monitor.Disarm()
	c.persistLocked()
	c.log.Info().Int("index", c.state.CurrentIndex).Int("total", c.state.Total()).Msg("automation: run stopped")
	c.notifyLocked(&fx, fmt.Sprintf("Automation stopped at profile %d/%d", c.state.CurrentIndex, c.state.Total()))
	c.publishLocked(&fx, domain.EventRunStopped, "", "")
	c.broadcastLocked(&fx)
	c.mu.Unlock()

	c.runEffects(ctx, fx)
	return nil
}

// Reset сбрасывает позицию очереди в ноль. Очередь и статистика сохраняются.
// Во время прогона текущий профиль бросается и обход начинается с начала.
func (c *Controller) Reset(ctx context.Context) error {
	var fx effects
	c.mu.Lock()
	c.state.CurrentIndex = 0
	c.state.ResumeIndex = 0
	if c.state.IsRunning {
		c.resetRuntimeLocked(&fx)
		c.state.LastActiveAt = c.clock.Now()
		c.scheduleDispatchLocked(0, domain.PhaseDispatching)
	}
	c.persistLocked()
	c.broadcastLocked(&fx)
	c.mu.Unlock()

	c.runEffects(ctx, fx)
	return nil
}

// ConnectionSent фиксирует успешную отправку и переходит к следующему профилю.
func (c *Controller) ConnectionSent(ctx context.Context, profile *domain.ProfileData) error {
	var fx effects
	c.mu.Lock()
	if !c.acceptsOutcomeLocked("connectionSent") {
		c.mu.Unlock()
		return nil
	}
	c.ledger.RecordSuccess(c.state.TemplateID, profile)
	metrics.ConnectionsSent.Inc()
	c.publishLocked(&fx, domain.EventConnectionSent, "", profileID(profile))
	c.log.Info().Int("index", c.state.CurrentIndex).Msg("automation: connection sent")
	c.finishProfileLocked(&fx)
	c.mu.Unlock()

	c.runEffects(ctx, fx)
	return nil
}

// ConnectionFailed фиксирует ошибку профиля и переходит к следующему. Профиль не повторяется.
func (c *Controller) ConnectionFailed(ctx context.Context, reason string, profile *domain.ProfileData) error {
	var fx effects
	if reason == "" {
		reason = "unknown"
	}
	c.mu.Lock()
	if !c.acceptsOutcomeLocked("connectionFailed") {
		c.mu.Unlock()
		return nil
	}
	c.ledger.RecordFailure(reason, profile)
	metrics.ConnectionFailures.WithLabelValues(reason).Inc()
	c.publishLocked(&fx, domain.EventConnectionFailed, reason, profileID(profile))
	c.log.Warn().Int("index", c.state.CurrentIndex).Str("reason", reason).Msg("automation: connection failed")
	c.finishProfileLocked(&fx)
	c.mu.Unlock()

	c.runEffects(ctx, fx)
	return nil
}

// HeartbeatResponse отмечает, что страница жива.
func (c *Controller) HeartbeatResponse(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsRunning {
		return
	}
	c.state.LastActiveAt = c.clock.Now()
	c.persistLocked()
}

// ContentUnloading сохраняет состояние перед выгрузкой страницы.
func (c *Controller) ContentUnloading(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistLocked()
}

// ChannelClosed обрабатывает закрытие вкладки извне: текущий профиль будет открыт заново.
func (c *Controller) ChannelClosed(ctx context.Context, id string) {
	var fx effects
	c.mu.Lock()
	if !c.state.IsRunning || id == "" || id != c.state.ActiveChannelID {
		c.mu.Unlock()
		return
	}
	c.channel = nil
	c.state.ActiveChannelID = ""
	c.stopTimerLocked()
	metrics.ChannelsLost.Inc()
	c.log.Warn().Str("channel", id).Int("index", c.state.CurrentIndex).Msg("automation: channel lost, re-dispatching")
	c.publishLocked(&fx, domain.EventChannelLost, "", "")
	c.scheduleDispatchLocked(c.cfg.LostChannelGrace, domain.PhaseDispatching)
	c.persistLocked()
	c.mu.Unlock()

	c.runEffects(ctx, fx)
}

// CheckStall восстанавливает прогон, если от страницы давно не было сигналов.
func (c *Controller) CheckStall(ctx context.Context) {
	c.mu.Lock()
	if !c.state.IsRunning || c.state.Phase == domain.PhaseCooldown || c.opening {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	if now.Sub(c.state.LastActiveAt) <= c.cfg.StallThreshold {
		c.mu.Unlock()
		return
	}

	var fx effects
	if c.channel == nil {
		kind := "dispatch"
		if c.state.ActiveChannelID != "" {
			kind = "lost"
			c.state.ActiveChannelID = ""
		}
		c.recoverLocked(&fx, kind)
		c.mu.Unlock()
		c.runEffects(ctx, fx)
		return
	}

	ch := c.channel
	gen, index := c.gen, c.state.CurrentIndex
	c.stopTimerLocked()
	c.state.LastActiveAt = now
	c.persistLocked()
	metrics.StallRecoveries.WithLabelValues("reload").Inc()
	c.publishLocked(&fx, domain.EventStallRecovery, "reload", "")
	c.log.Warn().Int("index", index).Str("channel", ch.ID()).Msg("automation: stall detected, reloading channel")
	c.mu.Unlock()
	c.runEffects(ctx, fx)

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	err := ch.Reload(opCtx)
	cancel()

	fx = nil
	c.mu.Lock()
	if gen != c.gen || index != c.state.CurrentIndex || c.channel != ch {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Str("channel", ch.ID()).Msg("automation: reload failed, channel lost")
		c.channel = nil
		c.state.ActiveChannelID = ""
		fx.add(func(context.Context) { closeChannel(c.log, ch) })
		c.recoverLocked(&fx, "lost")
		c.mu.Unlock()
		c.runEffects(ctx, fx)
		return
	}
	c.setTimerLocked(c.cfg.ReloadGrace, func(seq uint64) { c.sendDispatch(gen, index, seq) })
	c.mu.Unlock()
}

// Heartbeat опрашивает открытую вкладку. Ответ обновляет время активности.
func (c *Controller) Heartbeat(ctx context.Context) {
	c.mu.Lock()
	if !c.state.IsRunning || c.channel == nil {
		c.mu.Unlock()
		return
	}
	ch := c.channel
	c.mu.Unlock()

	alive, err := ch.Ping(ctx)
	if err != nil {
		c.log.Debug().Err(err).Str("channel", ch.ID()).Msg("automation: heartbeat failed")
		return
	}
	if alive {
		c.HeartbeatResponse(ctx)
	}
}

// FlushAnalytics сохраняет статистику.
func (c *Controller) FlushAnalytics() {
	c.ledger.Persist()
}

// IsRunning сообщает, выполняется ли прогон.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsRunning
}

// State возвращает копию состояния прогона.
func (c *Controller) State() domain.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Queue = append([]domain.ProfileRef(nil), c.state.Queue...)
	return st
}

// Status возвращает снимок прогресса.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) startIndexLocked(queue []domain.ProfileRef, requested *int) int {
	if len(queue) == 0 {
		return 0
	}
	if requested != nil {
		return clamp(*requested, 0, len(queue)-1)
	}
	if c.state.SameQueue(queue) && c.state.ResumeIndex < len(queue) {
		return clamp(c.state.ResumeIndex, 0, len(queue)-1)
	}
	return 0
}

// resetRuntimeLocked инвалидирует таймеры и открытия прошлых ходов и закрывает вкладку.
func (c *Controller) resetRuntimeLocked(fx *effects) {
	c.gen++
	c.opening = false
	c.stopTimerLocked()
	c.closeChannelLocked(fx)
}

func (c *Controller) stopTimerLocked() {
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// setTimerLocked заменяет единственный таймер хода. Сработавший, но
// заменённый таймер отбрасывается по seq.
func (c *Controller) setTimerLocked(d time.Duration, f func(seq uint64)) {
	c.stopTimerLocked()
	seq := c.seq
	c.timer = c.clock.AfterFunc(d, func() { f(seq) })
}

// closeChannelLocked сначала забывает вкладку, потом закрывает её,
// чтобы собственное закрытие не считалось потерей.
func (c *Controller) closeChannelLocked(fx *effects) {
	ch := c.channel
	c.channel = nil
	c.state.ActiveChannelID = ""
	if ch != nil {
		fx.add(func(context.Context) { closeChannel(c.log, ch) })
	}
}

func (c *Controller) acceptsOutcomeLocked(action string) bool {
	if c.state.IsRunning && (c.state.Phase == domain.PhaseDispatching || c.state.Phase == domain.PhaseAwaitingOutcome) {
		return true
	}
	metrics.DuplicateOutcomes.Inc()
	c.log.Debug().Str("action", action).Str("phase", string(c.state.Phase)).Bool("running", c.state.IsRunning).Msg("automation: outcome ignored")
	return false
}

// finishProfileLocked продвигает очередь после результата профиля.
func (c *Controller) finishProfileLocked(fx *effects) {
	c.gen++
	c.opening = false
	c.stopTimerLocked()
	c.closeChannelLocked(fx)
	c.state.CurrentIndex++
	c.state.ResumeIndex = c.state.CurrentIndex
	c.state.LastActiveAt = c.clock.Now()
	c.ledger.Persist()

	total := c.state.Total()
	if c.state.CurrentIndex >= total {
		c.completeLocked(fx)
		return
	}
	if every := c.cfg.NotifyEvery; every > 0 && c.state.CurrentIndex%every == 0 {
		c.notifyLocked(fx, fmt.Sprintf("Processed %d/%d profiles", c.state.CurrentIndex, total))
	}
	c.scheduleDispatchLocked(c.state.Delay(), domain.PhaseCooldown)
	c.persistLocked()
	c.broadcastLocked(fx)
}

func (c *Controller) completeLocked(fx *effects) {
	c.resetRuntimeLocked(fx)
	c.state.CurrentIndex = c.state.Total()
	c.state.ResumeIndex = c.state.CurrentIndex
	c.state.IsRunning = false
	c.state.Phase = domain.PhaseCompleted
	c.ledger.MarkEnded(c.clock.Now())
	c.ledger.Persist()
	c.monitor.Disarm()
	c.persistLocked()
	c.log.Info().Int("total", c.state.Total()).Msg("automation: run completed")
	c.notifyLocked(fx, fmt.Sprintf("Completed sending connections to %d profiles!", c.state.Total()))
	c.publishLocked(fx, domain.EventRunCompleted, "", "")
	c.broadcastLocked(fx)
}

// recoverLocked повторяет текущий профиль с новой вкладкой.
func (c *Controller) recoverLocked(fx *effects, kind string) {
	metrics.StallRecoveries.WithLabelValues(kind).Inc()
	c.publishLocked(fx, domain.EventStallRecovery, kind, "")
	c.log.Warn().Int("index", c.state.CurrentIndex).Str("kind", kind).Msg("automation: stall detected, re-dispatching")
	c.state.LastActiveAt = c.clock.Now()
	c.scheduleDispatchLocked(0, domain.PhaseDispatching)
	c.persistLocked()
}

// scheduleDispatchLocked планирует открытие вкладки для текущего профиля через delay.
func (c *Controller) scheduleDispatchLocked(delay time.Duration, phase domain.Phase) {
	c.state.Phase = phase
	gen, index := c.gen, c.state.CurrentIndex
	c.setTimerLocked(delay, func(seq uint64) { c.dispatch(gen, index, seq) })
}

// dispatch открывает вкладку профиля и после загрузки страницы планирует отправку действия.
func (c *Controller) dispatch(gen uint64, index int, seq uint64) {
	c.mu.Lock()
	if seq != c.seq || gen != c.gen || !c.state.IsRunning || index != c.state.CurrentIndex || c.opening ||
		(c.state.Phase != domain.PhaseDispatching && c.state.Phase != domain.PhaseCooldown) {
		c.mu.Unlock()
		return
	}
	var fx effects
	c.timer = nil
	c.closeChannelLocked(&fx)
	c.opening = true
	c.state.Phase = domain.PhaseDispatching
	c.state.LastActiveAt = c.clock.Now()
	url := string(c.state.Queue[index])
	c.persistLocked()
	c.broadcastLocked(&fx)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OpTimeout)
	defer cancel()
	c.runEffects(ctx, fx)

	ch, err := c.channels.Open(ctx, url)

	fx = nil
	c.mu.Lock()
	if gen != c.gen || !c.state.IsRunning || index != c.state.CurrentIndex {
		c.mu.Unlock()
		if ch != nil {
			c.log.Debug().Str("channel", ch.ID()).Msg("automation: stale channel closed")
			closeChannel(c.log, ch)
		}
		return
	}
	c.opening = false
	if err != nil {
		metrics.ChannelOpenFailures.Inc()
		c.log.Warn().Err(err).Int("index", index).Str("url", url).Msg("automation: channel open failed, skipping profile")
		c.publishLocked(&fx, domain.EventConnectionFailed, channelOpenFailedReason, "")
		c.finishProfileLocked(&fx)
		c.mu.Unlock()
		c.runEffects(ctx, fx)
		return
	}
	c.channel = ch
	c.state.ActiveChannelID = ch.ID()
	c.state.LastActiveAt = c.clock.Now()
	c.setTimerLocked(c.cfg.SettleDelay, func(seq uint64) { c.sendDispatch(gen, index, seq) })
	c.persistLocked()
	c.mu.Unlock()
}

// sendDispatch передаёт странице действие отправки запроса.
func (c *Controller) sendDispatch(gen uint64, index int, seq uint64) {
	c.mu.Lock()
	if seq != c.seq || gen != c.gen || !c.state.IsRunning || index != c.state.CurrentIndex || c.channel == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	ch := c.channel
	action := c.actionLocked(index)
	c.state.Phase = domain.PhaseAwaitingOutcome
	c.state.LastActiveAt = c.clock.Now()
	c.persistLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OpTimeout)
	defer cancel()
	if err := ch.Send(ctx, action); err != nil {
		c.log.Warn().Err(err).Int("index", index).Str("channel", ch.ID()).Msg("automation: dispatch failed, waiting for recovery")
		return
	}
	metrics.Dispatches.Inc()
	c.log.Debug().Int("index", index).Str("channel", ch.ID()).Msg("automation: action dispatched")
}

func (c *Controller) actionLocked(index int) domain.DispatchAction {
	st := domain.DefaultSettings()
	if c.settings != nil {
		st = c.settings.Current()
	}
	return domain.DispatchAction{
		Action:          domain.ActionSendConnection,
		Note:            c.state.MessageText,
		TemplateID:      c.state.TemplateID,
		DetectionMethod: st.DetectionMethod,
		AutoExtract:     st.AutoExtract,
		ProfileURL:      string(c.state.Queue[index]),
		Index:           index,
	}
}

func (c *Controller) persistLocked() {
	if c.saver == nil {
		return
	}
	st := c.state
	st.Queue = append([]domain.ProfileRef(nil), c.state.Queue...)
	c.saver.Save(domain.RecordRunState, st)
}

func (c *Controller) statusLocked() domain.Status {
	total := c.state.Total()
	current := c.state.CurrentIndex
	progress := 0
	if total > 0 {
		progress = int(math.Round(float64(current) / float64(total) * 100))
	}
	text := "Ready"
	switch {
	case c.state.IsRunning:
		text = fmt.Sprintf("Processing %d/%d", min(current+1, total), total)
	case current > 0:
		text = fmt.Sprintf("Completed %d/%d", current, total)
	}
	return domain.Status{
		StatusText:   text,
		Progress:     progress,
		IsRunning:    c.state.IsRunning,
		CurrentIndex: current,
		Total:        total,
		ResumeIndex:  c.state.ResumeIndex,
		Phase:        c.state.Phase,
		RunID:        c.state.RunID,
	}
}

func (c *Controller) broadcastLocked(fx *effects) {
	status := c.statusLocked()
	metrics.ObserveProgress(status.Progress, status.IsRunning)
	if c.broadcast == nil {
		return
	}
	fx.add(func(context.Context) { c.broadcast.Broadcast(status) })
}

func (c *Controller) notifyLocked(fx *effects, message string) {
	if c.notifier == nil {
		return
	}
	if c.settings != nil && !c.settings.Current().Notifications {
		return
	}
	title := c.cfg.NotifyTitle
	fx.add(func(ctx context.Context) {
		if err := c.notifier.Notify(ctx, title, message); err != nil {
			metrics.NotifySendErrors.Inc()
			c.log.Warn().Err(err).Msg("automation: notification failed")
		}
	})
}

func (c *Controller) publishLocked(fx *effects, kind domain.RunEventType, reason, profile string) {
	if c.events == nil {
		return
	}
	event := domain.RunEvent{
		ID:         uuid.NewString(),
		RunID:      c.state.RunID,
		Type:       kind,
		Index:      c.state.CurrentIndex,
		Total:      c.state.Total(),
		Reason:     reason,
		ProfileID:  profile,
		OccurredAt: c.clock.Now(),
	}
	fx.add(func(ctx context.Context) {
		if err := c.events.Publish(ctx, event); err != nil {
			metrics.EventPublishErrors.Inc()
			c.log.Warn().Err(err).Str("type", string(kind)).Msg("automation: event publish failed")
		}
	})
}

func closeChannel(logger zerolog.Logger, ch domain.Channel) {
	if err := ch.Close(); err != nil && !errors.Is(err, domain.ErrChannelGone) {
		logger.Debug().Err(err).Str("channel", ch.ID()).Msg("automation: channel close failed")
	}
}

func profileID(p *domain.ProfileData) string {
	if p == nil {
		return ""
	}
	return p.ProfileID
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
