package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/metrics"
)

const defaultWriteTimeout = 5 * time.Second

// Writer сохраняет записи в фоне. Save не ждёт записи: значение сериализуется
// сразу, а горутина Run пишет ключи по порядку. Повторное сохранение ключа,
// ещё не записанного в хранилище, заменяет значение на последнее.
type Writer struct {
	store   domain.Store
	log     zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[string][]byte
	order   []string

	wmu  sync.Mutex
	wake chan struct{}
}

var _ domain.RecordSaver = (*Writer)(nil)

// NewWriter создаёт фоновую запись поверх хранилища.
func NewWriter(s domain.Store, logger zerolog.Logger) *Writer {
	return &Writer{
		store:   s,
		log:     logger,
		timeout: defaultWriteTimeout,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
	}
}

// Save ставит запись в очередь на сохранение.
func (w *Writer) Save(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		w.log.Error().Err(err).Str("key", key).Msg("store: encode failed")
		metrics.PersistErrors.WithLabelValues(key).Inc()
		return
	}
	w.mu.Lock()
	if _, queued := w.pending[key]; !queued {
		w.order = append(w.order, key)
	}
	w.pending[key] = data
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run пишет записи, пока не отменён ctx.
func (w *Writer) Run(ctx context.Context) {
	for {
		for w.drainOne() {
		}
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
	}
}

// Flush синхронно записывает всё, что было поставлено в очередь до вызова.
func (w *Writer) Flush(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !w.drainOne() {
			return nil
		}
	}
}

// Pending возвращает число ожидающих записи ключей.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *Writer) drainOne() bool {
	w.wmu.Lock()
	defer w.wmu.Unlock()

	w.mu.Lock()
	if len(w.order) == 0 {
		w.mu.Unlock()
		return false
	}
	key := w.order[0]
	w.order = w.order[1:]
	data := w.pending[key]
	delete(w.pending, key)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.store.Set(ctx, key, data); err != nil {
		w.log.Error().Err(err).Str("key", key).Msg("store: write failed")
		metrics.PersistErrors.WithLabelValues(key).Inc()
	}
	return true
}
