package analytics

import (
	"errors"
	"testing"
	"time"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/clock"
)

type savedRecord struct {
	key   string
	value any
}

type stubSaver struct {
	saved []savedRecord
}

func (s *stubSaver) Save(key string, value any) {
	s.saved = append(s.saved, savedRecord{key: key, value: value})
}

type stubProfiles struct {
	stored []domain.ProfileData
}

func (s *stubProfiles) StoreProfile(p domain.ProfileData) {
	s.stored = append(s.stored, p)
}

func newTestLedger(now time.Time) (*Ledger, *clock.Fake, *stubSaver, *stubProfiles) {
	clk := clock.NewFake(now)
	saver := &stubSaver{}
	profiles := &stubProfiles{}
	return New(clk, time.UTC, saver, profiles), clk, saver, profiles
}

func TestRecordSuccessUpdatesBuckets(t *testing.T) {
	l, _, _, profiles := newTestLedger(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	l.RecordSuccess("default", &domain.ProfileData{ProfileID: "jane"})
	l.RecordSuccess("sales", nil)
	l.RecordSuccess("", nil)

	a := l.Snapshot()
	if a.TotalSent != 3 || a.Successful != 3 {
		t.Fatalf("ожидали 3 отправки, получили total=%d successful=%d", a.TotalSent, a.Successful)
	}
	if got := a.ByDate["2024-03-01"]; got.Sent != 3 || got.Successful != 3 {
		t.Fatalf("неожиданная статистика дня: %+v", got)
	}
	if a.ByTemplate.Len() != 2 {
		t.Fatalf("пустой шаблон не должен учитываться, получили %d шаблонов", a.ByTemplate.Len())
	}
	if len(profiles.stored) != 1 || profiles.stored[0].ProfileID != "jane" {
		t.Fatalf("ожидали сохранённый профиль jane, получили %+v", profiles.stored)
	}
}

// Ошибки учитываются только в errorTypes: failed и alreadyConnected остаются нулевыми,
// totalSent считает только успешные отправки.
func TestRecordFailureCountsOnlyErrorTypes(t *testing.T) {
	l, _, _, _ := newTestLedger(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	l.RecordFailure("button_not_found", nil)
	l.RecordFailure("", nil)
	l.RecordFailure("button_not_found", &domain.ProfileData{ProfileID: "bob"})

	a := l.Snapshot()
	if a.ErrorTypes["button_not_found"] != 2 || a.ErrorTypes["unknown"] != 1 {
		t.Fatalf("неожиданные ошибки: %v", a.ErrorTypes)
	}
	if a.TotalSent != 0 || a.Failed != 0 || a.AlreadyConnected != 0 {
		t.Fatalf("ожидали нулевые счётчики, получили %+v", a)
	}
	if len(a.ByDate) != 0 {
		t.Fatalf("ошибки не должны создавать дневные записи: %v", a.ByDate)
	}
}

func TestMarkStartedOnlyOnce(t *testing.T) {
	l, _, _, _ := newTestLedger(time.Unix(0, 0))
	first := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.MarkStarted(first)
	l.MarkStarted(first.Add(time.Hour))
	l.MarkEnded(first.Add(2 * time.Hour))

	a := l.Snapshot()
	if a.StartedAt == nil || !a.StartedAt.Equal(first) {
		t.Fatalf("ожидали первое время старта, получили %v", a.StartedAt)
	}
	if a.EndedAt == nil || !a.EndedAt.Equal(first.Add(2*time.Hour)) {
		t.Fatalf("неожиданное время окончания %v", a.EndedAt)
	}
}

func TestQueryFiltersByRange(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC)
	l, _, _, _ := newTestLedger(now)
	a := domain.NewAnalytics()
	a.ByDate["2024-03-10"] = domain.DayStats{Sent: 4, Successful: 4}
	a.ByDate["2024-03-19"] = domain.DayStats{Sent: 2, Successful: 2}
	a.ByDate["2024-03-14"] = domain.DayStats{Sent: 1, Successful: 1}
	a.ByTemplate.Inc("default")
	a.TotalSent = 7
	a.Successful = 7
	l.Load(a)

	view, err := l.Query("7")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(view.ByDate) != 2 {
		t.Fatalf("ожидали 2 дня в периоде, получили %v", view.ByDate)
	}
	if _, ok := view.ByDate["2024-03-10"]; ok {
		t.Fatal("день за пределами периода попал в выборку")
	}
	if view.TotalSent != 3 || view.Successful != 3 {
		t.Fatalf("ожидали пересчитанные суммы 3, получили %d/%d", view.TotalSent, view.Successful)
	}
	if view.ByTemplate.Len() != 1 {
		t.Fatal("статистика шаблонов не должна фильтроваться")
	}

	view, err = l.Query("1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(view.ByDate) != 0 || view.TotalSent != 0 {
		t.Fatalf("ожидали пустой день сегодня, получили %+v", view.ByDate)
	}

	view, err = l.Query("all")
	if err != nil || view.TotalSent != 7 || len(view.ByDate) != 3 {
		t.Fatalf("all должен вернуть всё, получили %+v (%v)", view, err)
	}
}

func TestQueryIncludesDayTenDaysAgoOnlyForWideRange(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 30, 0, 0, time.UTC)
	l, _, _, _ := newTestLedger(now)
	a := domain.NewAnalytics()
	a.ByDate["2024-03-10"] = domain.DayStats{Sent: 1, Successful: 1}
	a.ByDate["2024-03-19"] = domain.DayStats{Sent: 1, Successful: 1}
	l.Load(a)

	view, err := l.Query("11")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(view.ByDate) != 2 {
		t.Fatalf("ожидали оба дня за 11 дней, получили %v", view.ByDate)
	}
}

func TestQueryRejectsInvalidRange(t *testing.T) {
	l, _, _, _ := newTestLedger(time.Unix(0, 0))
	for _, raw := range []string{"week", "0", "-3"} {
		if _, err := l.Query(raw); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("ожидали ErrInvalidRange для %q, получили %v", raw, err)
		}
	}
}

func TestQueryUsesLocationForToday(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	clk := clock.NewFake(time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC))
	l := New(clk, loc, nil, nil)
	l.RecordSuccess("default", nil)
	a := l.Snapshot()
	if _, ok := a.ByDate["2024-03-02"]; !ok {
		t.Fatalf("ожидали день по местному времени, получили %v", a.ByDate)
	}
}

func TestPersistSavesSnapshot(t *testing.T) {
	l, _, saver, _ := newTestLedger(time.Unix(0, 0))
	l.RecordSuccess("default", nil)
	l.Persist()
	if len(saver.saved) != 1 || saver.saved[0].key != domain.RecordAnalytics {
		t.Fatalf("ожидали сохранение analytics, получили %+v", saver.saved)
	}
	saved, ok := saver.saved[0].value.(domain.Analytics)
	if !ok || saved.TotalSent != 1 {
		t.Fatalf("неожиданный снимок %+v", saver.saved[0].value)
	}
	l.RecordSuccess("default", nil)
	if saved.TotalSent != 1 {
		t.Fatal("снимок не должен меняться после записи")
	}
}
