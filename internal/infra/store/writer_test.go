package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"connection-pro/internal/domain"
)

type recordingStore struct {
	*MemoryStore
	keys []string
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte) error {
	s.keys = append(s.keys, key)
	return s.MemoryStore.Set(ctx, key, value)
}

func TestWriterCoalescesToLatestValue(t *testing.T) {
	mem := &recordingStore{MemoryStore: NewMemory()}
	w := NewWriter(mem, zerolog.Nop())

	w.Save("run_state", map[string]int{"currentIndex": 1})
	w.Save("analytics", map[string]int{"totalSent": 1})
	w.Save("run_state", map[string]int{"currentIndex": 2})

	if w.Pending() != 2 {
		t.Fatalf("ожидали 2 ключа в очереди, получили %d", w.Pending())
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(mem.keys) != 2 || mem.keys[0] != "run_state" || mem.keys[1] != "analytics" {
		t.Fatalf("ожидали запись в порядке постановки, получили %v", mem.keys)
	}
	var got map[string]int
	if _, err := Load(context.Background(), mem, "run_state", &got); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got["currentIndex"] != 2 {
		t.Fatalf("ожидали последнее значение 2, получили %d", got["currentIndex"])
	}
}

func TestWriterSnapshotsValueOnSave(t *testing.T) {
	mem := NewMemory()
	w := NewWriter(mem, zerolog.Nop())
	state := domain.NewRunState()
	state.CurrentIndex = 3
	w.Save(domain.RecordRunState, state)
	state.CurrentIndex = 7

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var got domain.RunState
	ok, err := Load(context.Background(), mem, domain.RecordRunState, &got)
	if err != nil || !ok {
		t.Fatalf("ожидали запись, получили ok=%v err=%v", ok, err)
	}
	if got.CurrentIndex != 3 {
		t.Fatalf("ожидали снимок 3, получили %d", got.CurrentIndex)
	}
}

func TestWriterDropsFailedWrites(t *testing.T) {
	mem := NewMemory()
	mem.FailWrites(errors.New("disk full"))
	w := NewWriter(mem, zerolog.Nop())
	w.Save("settings", map[string]bool{"darkMode": true})
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if w.Pending() != 0 {
		t.Fatal("неудачная запись не должна повторяться")
	}
	mem.FailWrites(nil)
	if _, err := mem.Get(context.Background(), "settings"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestWriterRunWritesInBackground(t *testing.T) {
	mem := NewMemory()
	w := NewWriter(mem, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Save("templates", map[string]string{"default": "Hi"})
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := mem.Get(context.Background(), "templates")
		if err == nil {
			var got map[string]string
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("не ожидали ошибку: %v", err)
			}
			if got["default"] != "Hi" {
				t.Fatalf("неожиданное значение %v", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("запись не появилась в хранилище")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	var dst domain.Settings
	ok, err := Load(context.Background(), NewMemory(), domain.RecordSettings, &dst)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ok {
		t.Fatal("ожидали отсутствие записи")
	}
}
