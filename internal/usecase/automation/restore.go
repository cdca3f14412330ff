package automation

import (
	"context"
	"fmt"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/store"
)

// Restore загружает сохранённые записи после старта процесса и, если прогон
// был активен, продолжает его с того же профиля.
func (c *Controller) Restore(ctx context.Context) error {
	runState := domain.NewRunState()
	if _, err := store.Load(ctx, c.store, domain.RecordRunState, &runState); err != nil {
		return fmt.Errorf("загрузка состояния прогона: %w", err)
	}
	stats := domain.NewAnalytics()
	if _, err := store.Load(ctx, c.store, domain.RecordAnalytics, &stats); err != nil {
		return fmt.Errorf("загрузка статистики: %w", err)
	}
	var cached map[string]domain.ProfileRecord
	if _, err := store.Load(ctx, c.store, domain.RecordProfiles, &cached); err != nil {
		return fmt.Errorf("загрузка профилей: %w", err)
	}
	var stored domain.TemplateSet
	if _, err := store.Load(ctx, c.store, domain.RecordTemplates, &stored); err != nil {
		return fmt.Errorf("загрузка шаблонов: %w", err)
	}
	prefs := domain.DefaultSettings()
	if _, err := store.Load(ctx, c.store, domain.RecordSettings, &prefs); err != nil {
		return fmt.Errorf("загрузка настроек: %w", err)
	}

	c.ledger.Load(stats)
	if c.profiles != nil {
		c.profiles.Load(cached)
	}
	if c.templates != nil {
		c.templates.Load(stored)
	}
	if c.settings != nil {
		c.settings.Load(prefs)
	}

	var fx effects
	c.mu.Lock()
	c.resetRuntimeLocked(&fx)
	if runState.Phase == "" {
		runState.Phase = domain.PhaseIdle
	}
	c.state = runState
	total := c.state.Total()
	c.state.CurrentIndex = clamp(c.state.CurrentIndex, 0, total)
	c.state.ResumeIndex = clamp(c.state.ResumeIndex, 0, total)
	if c.state.IsRunning && c.state.CurrentIndex >= total {
		c.state.IsRunning = false
		c.state.Phase = domain.PhaseCompleted
		c.state.ActiveChannelID = ""
	}

	if !c.state.IsRunning {
		c.persistLocked()
		c.broadcastLocked(&fx)
		c.mu.Unlock()
		c.runEffects(ctx, fx)
		return nil
	}

	if !prefs.AutoResume {
		c.state.IsRunning = false
		c.state.Phase = domain.PhaseStopped
		c.state.ResumeIndex = c.state.CurrentIndex
		c.state.ActiveChannelID = ""
		c.log.Info().Int("index", c.state.CurrentIndex).Msg("automation: auto-resume disabled, run marked stopped")
		c.persistLocked()
		c.broadcastLocked(&fx)
		c.mu.Unlock()
		c.runEffects(ctx, fx)
		return nil
	}

	gen := c.gen
	c.state.LastActiveAt = c.clock.Now()
	channelID := c.state.ActiveChannelID
	c.mu.Unlock()

	var ch domain.Channel
	if channelID != "" && c.channels != nil {
		found, err := c.channels.Lookup(ctx, channelID)
		if err != nil {
			c.log.Info().Err(err).Str("channel", channelID).Msg("automation: previous channel not found")
		} else {
			ch = found
		}
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if ch != nil {
			closeChannel(c.log, ch)
		}
		return nil
	}
	if ch != nil {
		c.channel = ch
		c.state.Phase = domain.PhaseAwaitingOutcome
		c.log.Info().Str("channel", ch.ID()).Int("index", c.state.CurrentIndex).Msg("automation: run resumed with open channel")
	} else {
		c.state.ActiveChannelID = ""
		c.log.Info().Int("index", c.state.CurrentIndex).Msg("automation: run resumed, re-dispatching")
		c.scheduleDispatchLocked(0, domain.PhaseDispatching)
	}
	c.monitor.Arm()
	c.persistLocked()
	c.broadcastLocked(&fx)
	c.mu.Unlock()

	c.runEffects(ctx, fx)
	return nil
}
