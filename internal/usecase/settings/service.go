package settings

import (
	"sync"

	"connection-pro/internal/domain"
)

// Service хранит пользовательские настройки.
type Service struct {
	mu      sync.RWMutex
	current domain.Settings
	saver   domain.RecordSaver
}

// NewService создаёт сервис с настройками по умолчанию.
func NewService(saver domain.RecordSaver) *Service {
	return &Service{current: domain.DefaultSettings(), saver: saver}
}

// Load накладывает сохранённые настройки.
func (s *Service) Load(stored domain.Settings) {
	if stored.DetectionMethod == "" {
		stored.DetectionMethod = domain.DetectionAuto
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = stored
}

// Current возвращает копию настроек.
func (s *Service) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Retention возвращает срок хранения профилей.
func (s *Service) Retention() domain.RetentionDays {
	return s.Current().DataStorageDays
}

// Update применяет частичное изменение и сохраняет результат.
func (s *Service) Update(patch domain.SettingsPatch) domain.Settings {
	s.mu.Lock()
	s.current = patch.Apply(s.current)
	next := s.current
	s.mu.Unlock()
	if s.saver != nil {
		s.saver.Save(domain.RecordSettings, next)
	}
	return next
}
