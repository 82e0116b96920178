package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"dermassist/client/internal/storage"
)

const (
	themeDark  = "dark"
	themeLight = "light"
)

// ThemeService is the light/dark preference. Light is the default.
type ThemeService struct {
	store storage.Store
	key   string
	log   zerolog.Logger

	mu   sync.RWMutex
	dark bool
}

func NewThemeService(ctx context.Context, store storage.Store, key string, log zerolog.Logger) *ThemeService {
	s := &ThemeService{store: store, key: key, log: log}

	value, ok, err := store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("read theme preference failed")
	} else if ok {
		s.dark = value == themeDark
	}
	return s
}

func (s *ThemeService) IsDark() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dark
}

// RootClass is the class applied to the document root.
func (s *ThemeService) RootClass() string {
	if s.IsDark() {
		return themeDark
	}
	return ""
}

func (s *ThemeService) Toggle(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dark = !s.dark
	s.persistLocked(ctx)
	return s.dark
}

func (s *ThemeService) Set(ctx context.Context, dark bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dark = dark
	s.persistLocked(ctx)
}

func (s *ThemeService) persistLocked(ctx context.Context) {
	value := themeLight
	if s.dark {
		value = themeDark
	}
	if err := s.store.Set(ctx, s.key, value); err != nil {
		s.log.Warn().Err(err).Msg("persist theme preference failed")
	}
}
