package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"connection-pro/internal/infra/clock"
)

// Target — то, за чьей живостью следит монитор.
type Target interface {
	IsRunning() bool
	Heartbeat(ctx context.Context)
	CheckStall(ctx context.Context)
	FlushAnalytics()
}

// Intervals — периоды задач монитора.
type Intervals struct {
	Heartbeat      time.Duration
	Recovery       time.Duration
	AnalyticsFlush time.Duration
}

type task struct {
	name     string
	interval time.Duration
	work     func(ctx context.Context)

	active bool
	gen    uint64
	timer  clock.Timer
}

// Monitor запускает три периодические задачи, пока прогон выполняется.
// Каждая задача отменяет себя, как только видит, что прогон остановлен.
type Monitor struct {
	clock  clock.Clock
	log    zerolog.Logger
	target Target

	mu    sync.Mutex
	tasks []*task
}

// New создаёт монитор. Задачи не запущены до Arm.
func New(target Target, clk clock.Clock, intervals Intervals, logger zerolog.Logger) *Monitor {
	m := &Monitor{clock: clk, log: logger, target: target}
	m.tasks = []*task{
		{name: "heartbeat", interval: intervals.Heartbeat, work: target.Heartbeat},
		{name: "recovery", interval: intervals.Recovery, work: target.CheckStall},
		{name: "analytics_flush", interval: intervals.AnalyticsFlush, work: func(context.Context) { target.FlushAnalytics() }},
	}
	return m
}

// Arm запускает задачи, которые ещё не активны.
func (m *Monitor) Arm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.active || t.interval <= 0 {
			continue
		}
		t.active = true
		t.gen++
		m.scheduleLocked(t, t.gen)
		m.log.Debug().Str("task", t.name).Dur("interval", t.interval).Msg("monitor: armed")
	}
}

// Disarm отменяет все задачи.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		m.cancelLocked(t)
	}
}

// Active возвращает число активных задач.
func (m *Monitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.active {
			n++
		}
	}
	return n
}

func (m *Monitor) scheduleLocked(t *task, gen uint64) {
	t.timer = m.clock.AfterFunc(t.interval, func() { m.tick(t, gen) })
}

func (m *Monitor) cancelLocked(t *task) {
	if !t.active {
		return
	}
	t.active = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (m *Monitor) current(t *task, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return t.active && t.gen == gen
}

func (m *Monitor) tick(t *task, gen uint64) {
	if !m.current(t, gen) {
		return
	}
	if !m.target.IsRunning() {
		m.mu.Lock()
		if t.active && t.gen == gen {
			m.cancelLocked(t)
			m.log.Debug().Str("task", t.name).Msg("monitor: run inactive, task cancelled")
		}
		m.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.interval)
	t.work(ctx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if t.active && t.gen == gen {
		m.scheduleLocked(t, gen)
	}
}
