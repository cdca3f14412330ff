package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ConnectionsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "connections_sent_total",
		Help: "Успешно отправленные запросы на контакт",
	})
	ConnectionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_failures_total",
		Help: "Ошибки отправки запросов по причинам",
	}, []string{"reason"})
	Dispatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatches_total",
		Help: "Отправленные странице действия",
	})
	ChannelOpenFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "channel_open_failures_total",
		Help: "Ошибки открытия вкладки профиля",
	})
	ChannelsLost = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "channels_lost_total",
		Help: "Вкладки, закрытые во время обработки",
	})
	StallRecoveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stall_recoveries_total",
		Help: "Восстановления после зависания по типам",
	}, []string{"kind"})
	DuplicateOutcomes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_outcomes_total",
		Help: "Проигнорированные повторные сигналы результата",
	})
	RunProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "run_progress_percent",
		Help: "Прогресс текущего прогона",
	})
	RunActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "run_active",
		Help: "1, если прогон выполняется",
	})
	PersistErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "persist_errors_total",
		Help: "Ошибки записи в хранилище",
	}, []string{"key"})
	EventPublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_publish_errors_total",
		Help: "Ошибки публикации событий прогона",
	})
	NotifySendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_send_errors_total",
		Help: "Ошибки отправки уведомлений",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ConnectionsSent,
		ConnectionFailures,
		Dispatches,
		ChannelOpenFailures,
		ChannelsLost,
		StallRecoveries,
		DuplicateOutcomes,
		RunProgress,
		RunActive,
		PersistErrors,
		EventPublishErrors,
		NotifySendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveProgress обновляет показатели текущего прогона.
func ObserveProgress(progress int, running bool) {
	RunProgress.Set(float64(progress))
	if running {
		RunActive.Set(1)
		return
	}
	RunActive.Set(0)
}
