package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
)

// sseWriteTimeout ограничивает запись одному подписчику.
const sseWriteTimeout = 2 * time.Second

// errClientDetached возвращается при записи подписчику, чей обработчик уже завершился.
var errClientDetached = errors.New("sse: client detached")

// sseClient — подключённый подписчик потока статуса.
type sseClient struct {
	id   string
	w    http.ResponseWriter
	rc   *http.ResponseController
	done chan struct{}
	once sync.Once
	wmu  sync.Mutex
}

func newSSEClient(w http.ResponseWriter) *sseClient {
	return &sseClient{
		id:   uuid.NewString(),
		w:    w,
		rc:   http.NewResponseController(w),
		done: make(chan struct{}),
	}
}

func (c *sseClient) close() {
	c.once.Do(func() { close(c.done) })
}

// send пишет событие. После detach запись не выполняется.
func (c *sseClient) send(message []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	select {
	case <-c.done:
		return errClientDetached
	default:
	}
	_ = c.rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	defer func() { _ = c.rc.SetWriteDeadline(time.Time{}) }()
	if _, err := c.w.Write(message); err != nil {
		return err
	}
	return c.rc.Flush()
}

// detach отключает подписчика и ждёт окончания текущей записи.
// После возврата ResponseWriter больше не используется.
func (c *sseClient) detach() {
	c.close()
	c.wmu.Lock()
	c.wmu.Unlock()
}

// Broadcaster рассылает статус прогона подписчикам SSE.
// Отсутствие подписчиков ошибкой не считается.
type Broadcaster struct {
	log     zerolog.Logger
	mu      sync.RWMutex
	clients map[string]*sseClient
}

var _ domain.StatusBroadcaster = (*Broadcaster)(nil)

// NewBroadcaster создаёт рассыльщик.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{log: logger, clients: make(map[string]*sseClient)}
}

func (b *Broadcaster) addClient(w http.ResponseWriter) (*sseClient, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	client := newSSEClient(w)
	b.mu.Lock()
	b.clients[client.id] = client
	total := len(b.clients)
	b.mu.Unlock()
	b.log.Debug().Str("client", client.id).Int("clients", total).Msg("sse: client connected")
	return client, nil
}

func (b *Broadcaster) removeClient(id string) {
	b.mu.Lock()
	client, ok := b.clients[id]
	delete(b.clients, id)
	total := len(b.clients)
	b.mu.Unlock()
	if !ok {
		return
	}
	client.close()
	b.log.Debug().Str("client", id).Int("clients", total).Msg("sse: client disconnected")
}

// ClientCount возвращает число подписчиков.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast отправляет событие status всем подписчикам. Зависшие подписчики отключаются.
func (b *Broadcaster) Broadcast(data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		b.log.Error().Err(err).Msg("sse: marshal failed")
		return
	}
	message := []byte(fmt.Sprintf("event: status\ndata: %s\n\n", payload))

	b.mu.RLock()
	clients := make([]*sseClient, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	dead := make(chan string, len(clients))
	var wg sync.WaitGroup
	for _, c := range clients {
		select {
		case <-c.done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *sseClient) {
			defer wg.Done()
			b.write(c, message, dead)
		}(c)
	}
	wg.Wait()
	close(dead)
	for id := range dead {
		b.removeClient(id)
	}
}

func (b *Broadcaster) write(c *sseClient, message []byte, dead chan<- string) {
	done := make(chan error, 1)
	go func() {
		done <- c.send(message)
	}()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, errClientDetached) {
			b.log.Debug().Err(err).Str("client", c.id).Msg("sse: write failed")
			dead <- c.id
		}
	case <-time.After(sseWriteTimeout):
		b.log.Warn().Str("client", c.id).Msg("sse: write timed out")
		dead <- c.id
	case <-c.done:
	}
}

// Handler держит соединение SSE до отключения клиента. initial, если задан,
// отправляется сразу после подключения.
func (b *Broadcaster) Handler(initial func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		if initial != nil {
			if payload, err := json.Marshal(initial()); err == nil {
				fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
			}
		}
		flusher.Flush()

		client, err := b.addClient(w)
		if err != nil {
			return
		}
		defer func() {
			b.removeClient(client.id)
			client.detach()
		}()

		select {
		case <-r.Context().Done():
		case <-client.done:
		}
	}
}
