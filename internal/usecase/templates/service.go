package templates

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"connection-pro/internal/domain"
)

var (
	// ErrTemplateNotFound возвращается для неизвестного шаблона.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrDefaultTemplate возвращается при попытке удалить шаблон по умолчанию.
	ErrDefaultTemplate = errors.New("default template cannot be deleted")
	// ErrInvalidTemplate возвращается для пустого идентификатора или текста.
	ErrInvalidTemplate = errors.New("invalid template")
)

// Service управляет набором шаблонов сообщений.
type Service struct {
	mu    sync.RWMutex
	set   domain.TemplateSet
	saver domain.RecordSaver
}

// NewService создаёт набор из встроенных шаблонов, дополненных seed.
func NewService(saver domain.RecordSaver, seed domain.TemplateSet) *Service {
	set := domain.BuiltinTemplates()
	for id, body := range seed {
		set[id] = body
	}
	return &Service{set: set, saver: saver}
}

// LoadSeedFile читает шаблоны из YAML вида `id: текст`. Пустой путь — пустой набор.
func LoadSeedFile(path string) (domain.TemplateSet, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение шаблонов: %w", err)
	}
	var seed domain.TemplateSet
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("разбор шаблонов: %w", err)
	}
	for id, body := range seed {
		if strings.TrimSpace(id) == "" || strings.TrimSpace(body) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTemplate, id)
		}
	}
	return seed, nil
}

// Load накладывает сохранённые шаблоны поверх текущих.
func (s *Service) Load(stored domain.TemplateSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, body := range stored {
		s.set[id] = body
	}
}

// All возвращает копию набора.
func (s *Service) All() domain.TemplateSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Clone()
}

// Body возвращает текст шаблона.
func (s *Service) Body(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.set[id]
	return body, ok
}

// Save создаёт или обновляет шаблон.
func (s *Service) Save(id, body string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(body) == "" {
		return ErrInvalidTemplate
	}
	s.mu.Lock()
	s.set[id] = body
	snapshot := s.set.Clone()
	s.mu.Unlock()
	s.persist(snapshot)
	return nil
}

// ReplaceAll заменяет набор целиком. Шаблон по умолчанию сохраняется, если его нет в all.
func (s *Service) ReplaceAll(all domain.TemplateSet) error {
	next := make(domain.TemplateSet, len(all)+1)
	for id, body := range all {
		if strings.TrimSpace(id) == "" {
			return ErrInvalidTemplate
		}
		next[id] = body
	}
	s.mu.Lock()
	if _, ok := next[domain.DefaultTemplateID]; !ok {
		next[domain.DefaultTemplateID] = s.set[domain.DefaultTemplateID]
	}
	s.set = next
	snapshot := s.set.Clone()
	s.mu.Unlock()
	s.persist(snapshot)
	return nil
}

// Delete удаляет шаблон. Шаблон по умолчанию удалить нельзя.
func (s *Service) Delete(id string) error {
	if id == domain.DefaultTemplateID {
		return ErrDefaultTemplate
	}
	s.mu.Lock()
	if _, ok := s.set[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	delete(s.set, id)
	snapshot := s.set.Clone()
	s.mu.Unlock()
	s.persist(snapshot)
	return nil
}

func (s *Service) persist(set domain.TemplateSet) {
	if s.saver != nil {
		s.saver.Save(domain.RecordTemplates, set)
	}
}
