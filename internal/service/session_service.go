package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dermassist/client/internal/models"
	"dermassist/client/internal/security"
	"dermassist/client/internal/storage"
)

// ErrSuperseded is returned by Login and Register when a later session
// operation (typically Logout) completed while the call was in flight. The
// stale result is dropped.
var ErrSuperseded = errors.New("session changed while request was in flight")

type AuthBackend interface {
	Register(ctx context.Context, input models.RegisterInput) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Me(ctx context.Context, token string) (models.UserProfile, error)
}

// SessionSnapshot is a consistent copy of the session state.
type SessionSnapshot struct {
	Token      string
	User       *models.UserProfile
	Loading    bool
	IsLoggedIn bool
}

// SessionService owns the bearer token and the cached profile. State is only
// changed through Initialize, Register, Login, Logout and ExpireIfStale.
type SessionService struct {
	backend  AuthBackend
	store    storage.Store
	tokenKey string
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	token   string
	user    *models.UserProfile
	loading bool
	epoch   uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// NewSessionService seeds the token from storage. The session stays in the
// loading state until Initialize has verified it.
func NewSessionService(ctx context.Context, backend AuthBackend, store storage.Store, tokenKey string, log zerolog.Logger) *SessionService {
	s := &SessionService{
		backend:  backend,
		store:    store,
		tokenKey: tokenKey,
		log:      log,
		now:      time.Now,
		loading:  true,
		ready:    make(chan struct{}),
	}

	token, ok, err := store.Get(ctx, tokenKey)
	if err != nil {
		log.Warn().Err(err).Msg("read persisted token failed")
	} else if ok {
		s.token = token
	}
	return s
}

func (s *SessionService) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		Token:   s.token,
		Loading: s.loading,
	}
	if s.user != nil {
		user := *s.user
		snap.User = &user
	}
	snap.IsLoggedIn = snap.Token != "" && snap.User != nil
	return snap
}

func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Ready is closed once Initialize has finished.
func (s *SessionService) Ready() <-chan struct{} {
	return s.ready
}

// Initialize verifies the persisted token against /user/me. A rejected or
// expired token is a silent logout, never an error.
func (s *SessionService) Initialize(ctx context.Context) {
	defer s.finishLoading()

	s.mu.RLock()
	token, epoch := s.token, s.epoch
	s.mu.RUnlock()

	if token == "" {
		return
	}

	if security.TokenExpired(token, s.now()) {
		s.log.Info().Msg("persisted token expired")
		s.discard(ctx, epoch)
		return
	}

	profile, err := s.backend.Me(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Info().Err(err).Msg("session verification failed, logging out")
		s.discard(ctx, epoch)
		return
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.user = &profile
	}
	s.mu.Unlock()

	s.log.Info().Str("username", profile.Username).Msg("session restored")
}

func (s *SessionService) Register(ctx context.Context, input models.RegisterInput) error {
	epoch := s.currentEpoch()

	token, err := s.backend.Register(ctx, input)
	if err != nil {
		return err
	}
	return s.establish(ctx, epoch, token)
}

func (s *SessionService) Login(ctx context.Context, username, password string) error {
	epoch := s.currentEpoch()

	token, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return s.establish(ctx, epoch, token)
}

// Logout clears the session immediately. Token revocation is the backend's
// concern.
func (s *SessionService) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

// ExpireIfStale logs the session out when the token's exp claim has passed.
func (s *SessionService) ExpireIfStale(ctx context.Context, now time.Time) bool {
	s.mu.RLock()
	token, epoch := s.token, s.epoch
	s.mu.RUnlock()

	if token == "" || !security.TokenExpired(token, now) {
		return false
	}
	s.log.Info().Msg("session expired")
	return s.discard(ctx, epoch)
}

// establish fetches the profile for a freshly issued token and installs both.
// Nothing is mutated unless the profile fetch succeeds.
func (s *SessionService) establish(ctx context.Context, epoch uint64, token string) error {
	profile, err := s.backend.Me(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSuperseded
	}
	if err := s.store.Set(ctx, s.tokenKey, token); err != nil {
		return err
	}
	s.token = token
	s.user = &profile
	s.epoch++

	s.log.Info().Str("username", profile.Username).Msg("session established")
	return nil
}

func (s *SessionService) discard(ctx context.Context, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.clearLocked(ctx)
	return true
}

// clearLocked empties memory and storage under the same lock hold.
func (s *SessionService) clearLocked(ctx context.Context) {
	s.token = ""
	s.user = nil
	s.epoch++
	if err := s.store.Remove(ctx, s.tokenKey); err != nil {
		s.log.Warn().Err(err).Msg("remove persisted token failed")
	}
}

func (s *SessionService) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *SessionService) finishLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}
