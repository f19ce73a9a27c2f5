package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"agrivoice/internal/domain"
)

type preferences struct {
	Language string `yaml:"language"`
}

// FileStore keeps user preferences in a small YAML file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// LoadLanguage returns "" when nothing has been saved yet.
func (s *FileStore) LoadLanguage() (domain.Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		return "", err
	}
	if p.Language == "" {
		return "", nil
	}

	lang, err := domain.ParseLanguage(p.Language)
	if err != nil {
		return "", fmt.Errorf("stored preference: %w", err)
	}
	return lang, nil
}

func (s *FileStore) SaveLanguage(lang domain.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		return err
	}
	p.Language = lang.String()

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing preferences: %w", err)
	}
	return nil
}

func (s *FileStore) read() (preferences, error) {
	var p preferences

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("reading preferences: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing preferences: %w", err)
	}
	return p, nil
}
