package templates

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"connection-pro/internal/domain"
)

type stubSaver struct {
	last domain.TemplateSet
}

func (s *stubSaver) Save(key string, value any) {
	if key == domain.RecordTemplates {
		s.last = value.(domain.TemplateSet)
	}
}

func TestNewServiceSeedsBuiltins(t *testing.T) {
	s := NewService(nil, domain.TemplateSet{"follow-up": "Hi [Name], following up."})
	all := s.All()
	for _, id := range []string{"default", "recruiter", "sales", "networking", "follow-up"} {
		if _, ok := all[id]; !ok {
			t.Fatalf("ожидали шаблон %s", id)
		}
	}
}

func TestSaveAndDelete(t *testing.T) {
	saver := &stubSaver{}
	s := NewService(saver, nil)
	if err := s.Save("intro", "Hello [Name]"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if body, ok := s.Body("intro"); !ok || body != "Hello [Name]" {
		t.Fatalf("неожиданный шаблон %q", body)
	}
	if saver.last["intro"] != "Hello [Name]" {
		t.Fatal("ожидали сохранение набора")
	}
	if err := s.Delete("intro"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := saver.last["intro"]; ok {
		t.Fatal("удалённый шаблон остался в сохранённом наборе")
	}
	if err := s.Delete("intro"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("ожидали ErrTemplateNotFound, получили %v", err)
	}
}

func TestDefaultTemplateCannotBeDeleted(t *testing.T) {
	s := NewService(nil, nil)
	if err := s.Delete(domain.DefaultTemplateID); !errors.Is(err, ErrDefaultTemplate) {
		t.Fatalf("ожидали ErrDefaultTemplate, получили %v", err)
	}
	if err := s.ReplaceAll(domain.TemplateSet{"sales": "Hi"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := s.Body(domain.DefaultTemplateID); !ok {
		t.Fatal("шаблон по умолчанию должен пережить замену набора")
	}
	if _, ok := s.Body("recruiter"); ok {
		t.Fatal("ожидали замену набора целиком")
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := "follow-up: \"Hi [Name], thanks for connecting.\"\ndefault: \"Hello [Name]\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	seed, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	s := NewService(nil, seed)
	if body, _ := s.Body("default"); body != "Hello [Name]" {
		t.Fatalf("seed должен переопределять встроенный шаблон, получили %q", body)
	}

	if seed, err := LoadSeedFile(""); err != nil || seed != nil {
		t.Fatalf("пустой путь должен давать пустой набор, получили %v (%v)", seed, err)
	}
}
