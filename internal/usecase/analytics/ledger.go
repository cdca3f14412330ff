package analytics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/clock"
)

// ErrInvalidRange возвращается для некорректного фильтра периода.
var ErrInvalidRange = errors.New("invalid range")

// ErrNoData возвращается при экспорте пустой статистики.
var ErrNoData = errors.New("no data to export")

// RangeAll — фильтр без ограничения по датам.
const RangeAll = "all"

const dayLayout = "2006-01-02"

// Ledger накапливает статистику отправок. Таймеров не держит, сохраняется по Persist.
type Ledger struct {
	mu       sync.RWMutex
	data     domain.Analytics
	clock    clock.Clock
	loc      *time.Location
	saver    domain.RecordSaver
	profiles domain.ProfileSink
}

// New создаёт пустой журнал. profiles может быть nil.
func New(clk clock.Clock, loc *time.Location, saver domain.RecordSaver, profiles domain.ProfileSink) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		data:     domain.NewAnalytics(),
		clock:    clk,
		loc:      loc,
		saver:    saver,
		profiles: profiles,
	}
}

// Load заменяет содержимое журнала восстановленной статистикой.
func (l *Ledger) Load(a domain.Analytics) {
	a = a.Clone()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = a
}

// RecordSuccess учитывает успешную отправку за сегодня и по шаблону.
func (l *Ledger) RecordSuccess(templateID string, profile *domain.ProfileData) {
	day := l.clock.Now().In(l.loc).Format(dayLayout)

	l.mu.Lock()
	l.data.Successful++
	l.data.TotalSent++
	bucket := l.data.ByDate[day]
	bucket.Sent++
	bucket.Successful++
	l.data.ByDate[day] = bucket
	if templateID != "" {
		l.data.ByTemplate.Inc(templateID)
	}
	l.mu.Unlock()

	l.storeProfile(profile)
}

// RecordFailure учитывает причину ошибки. Общие счётчики отправок не меняются.
func (l *Ledger) RecordFailure(reason string, profile *domain.ProfileData) {
	if reason == "" {
		reason = "unknown"
	}
	l.mu.Lock()
	l.data.ErrorTypes[reason]++
	l.mu.Unlock()

	l.storeProfile(profile)
}

// MarkStarted запоминает время первого запуска.
func (l *Ledger) MarkStarted(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.data.StartedAt == nil {
		l.data.StartedAt = &t
	}
}

// MarkEnded запоминает время последней остановки.
func (l *Ledger) MarkEnded(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data.EndedAt = &t
}

// Snapshot возвращает копию статистики.
func (l *Ledger) Snapshot() domain.Analytics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.Clone()
}

// Persist ставит статистику на сохранение.
func (l *Ledger) Persist() {
	if l.saver == nil {
		return
	}
	l.saver.Save(domain.RecordAnalytics, l.Snapshot())
}

// Query возвращает статистику за последние N дней, включая сегодня.
// "" и "all" возвращают всё. byTemplate не фильтруется.
func (l *Ledger) Query(rangeFilter string) (domain.Analytics, error) {
	days, all, err := parseRange(rangeFilter)
	if err != nil {
		return domain.Analytics{}, err
	}
	snapshot := l.Snapshot()
	if all {
		return snapshot, nil
	}

	now := l.clock.Now().In(l.loc)
	cutoff := time.Date(now.Year(), now.Month(), now.Day()-(days-1), 0, 0, 0, 0, l.loc).Format(dayLayout)

	view := snapshot
	view.ByDate = make(map[string]domain.DayStats)
	view.TotalSent = 0
	view.Successful = 0
	for day, st := range snapshot.ByDate {
		if day < cutoff {
			continue
		}
		view.ByDate[day] = st
		view.TotalSent += st.Sent
		view.Successful += st.Successful
	}
	return view, nil
}

// ExportCSV выгружает статистику в CSV.
func (l *Ledger) ExportCSV() (string, error) {
	return FormatCSV(l.Snapshot())
}

func (l *Ledger) storeProfile(profile *domain.ProfileData) {
	if profile == nil || l.profiles == nil {
		return
	}
	l.profiles.StoreProfile(*profile)
}

func parseRange(raw string) (int, bool, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" || s == RangeAll {
		return 0, true, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
	}
	return n, false, nil
}
