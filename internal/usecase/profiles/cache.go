package profiles

import (
	"sync"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/clock"
)

// RetentionSource сообщает текущий срок хранения профилей.
type RetentionSource interface {
	Retention() domain.RetentionDays
}

// Cache хранит последние данные о профилях по их идентификатору.
type Cache struct {
	mu        sync.Mutex
	records   map[string]domain.ProfileRecord
	clock     clock.Clock
	saver     domain.RecordSaver
	retention RetentionSource
}

var _ domain.ProfileSink = (*Cache)(nil)

// New создаёт пустой кэш.
func New(clk clock.Clock, saver domain.RecordSaver, retention RetentionSource) *Cache {
	return &Cache{
		records:   make(map[string]domain.ProfileRecord),
		clock:     clk,
		saver:     saver,
		retention: retention,
	}
}

// Load заменяет содержимое кэша восстановленными записями.
func (c *Cache) Load(records map[string]domain.ProfileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]domain.ProfileRecord, len(records))
	for id, rec := range records {
		c.records[id] = rec
	}
}

// StoreProfile перезаписывает профиль, удаляет устаревшие записи и сохраняет кэш.
// Профили без идентификатора пропускаются.
func (c *Cache) StoreProfile(p domain.ProfileData) {
	if p.ProfileID == "" {
		return
	}
	c.mu.Lock()
	c.records[p.ProfileID] = domain.ProfileRecord{ProfileData: p, LastUpdate: c.clock.Now()}
	c.pruneLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.saver != nil {
		c.saver.Save(domain.RecordProfiles, snapshot)
	}
}

// Prune удаляет записи старше срока хранения и возвращает их число.
func (c *Cache) Prune() int {
	c.mu.Lock()
	removed := c.pruneLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	if removed > 0 && c.saver != nil {
		c.saver.Save(domain.RecordProfiles, snapshot)
	}
	return removed
}

// Get возвращает профиль по идентификатору.
func (c *Cache) Get(id string) (domain.ProfileRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Len возвращает число профилей.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *Cache) pruneLocked() int {
	if c.retention == nil {
		return 0
	}
	window := c.retention.Retention().Window()
	if window <= 0 {
		return 0
	}
	cutoff := c.clock.Now().Add(-window)
	removed := 0
	for id, rec := range c.records {
		if rec.LastUpdate.IsZero() {
			continue
		}
		if rec.LastUpdate.Before(cutoff) {
			delete(c.records, id)
			removed++
		}
	}
	return removed
}

func (c *Cache) snapshotLocked() map[string]domain.ProfileRecord {
	out := make(map[string]domain.ProfileRecord, len(c.records))
	for id, rec := range c.records {
		out[id] = rec
	}
	return out
}

// retentionFunc позволяет передать срок хранения функцией.
type retentionFunc func() domain.RetentionDays

func (f retentionFunc) Retention() domain.RetentionDays { return f() }

// FixedRetention возвращает источник с постоянным сроком хранения.
func FixedRetention(days domain.RetentionDays) RetentionSource {
	return retentionFunc(func() domain.RetentionDays { return days })
}
