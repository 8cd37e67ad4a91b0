package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"planner-agent/internal/api"
	"planner-agent/internal/auth"
	"planner-agent/internal/auth/credentials"
	"planner-agent/internal/logger"
	"planner-agent/internal/storage"
)

// Authenticator is the slice of the backend API the session needs.
type Authenticator interface {
	Login(ctx context.Context, creds credentials.Credentials) (*api.AuthResponse, error)
	Register(ctx context.Context, reg credentials.Registration) (*api.RegisterResponse, error)
	Profile(ctx context.Context) (*auth.User, error)
}

type Store struct {
	backend Authenticator
	durable storage.Store

	mu      sync.RWMutex
	status  Status
	token   string
	user    *auth.User
	role    auth.Role
	loading bool
	epoch   uint64 // bumped by every login/logout

	// transitionMu orders state changes and their delivery to listeners.
	transitionMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []subscription
	nextID      int

	initOnce sync.Once
}

type subscription struct {
	id       int
	listener Listener
}

func New(backend Authenticator, durable storage.Store) *Store {
	return &Store{
		backend: backend,
		durable: durable,
		status:  StatusUninitialized,
		loading: true,
	}
}

// Subscribe registers l for auth transitions. The returned func removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, listener: l})
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(ctx context.Context, t Transition) {
	s.listenersMu.RLock()
	subs := make([]subscription, len(s.listeners))
	copy(subs, s.listeners)
	s.listenersMu.RUnlock()

	for _, sub := range subs {
		sub.listener.OnAuthTransition(ctx, t)
	}
}

// Initialize restores the session from a stored token. It runs once per
// Store; later calls return immediately. Failures are logged and leave the
// session unauthenticated with the durable token and role removed.
func (s *Store) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		defer s.finishLoading()
		s.restore(ctx)
	})
}

func (s *Store) finishLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
}

func (s *Store) restore(ctx context.Context) {
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	token, ok, err := s.durable.Get(ctx, storage.KeyToken)
	if err != nil {
		// An unreadable slot cannot be restored; drop it so IsAuthenticated
		// agrees with the unauthenticated status once reads recover.
		logger.Warn("session restore: reading stored token failed", map[string]any{"error": err.Error()})
		if derr := s.durable.Delete(ctx, storage.KeyToken, storage.KeyRole); derr != nil {
			logger.Error("session restore: clearing stored token failed", map[string]any{"error": derr.Error()})
		}
	}
	if err != nil || !ok || token == "" {
		s.settleUnauthenticated(epoch)
		return
	}

	user, err := s.backend.Profile(ctx)
	if err == nil && user == nil {
		err = errors.New("profile response carried no user")
	}

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	if s.epoch != epoch {
		// A login or logout finished while the profile was in flight.
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.clearLocked()
		s.mu.Unlock()

		logger.Warn("session restore failed", map[string]any{"error": err.Error()})
		if derr := s.durable.Delete(ctx, storage.KeyToken, storage.KeyRole); derr != nil {
			logger.Error("session restore: clearing stored token failed", map[string]any{"error": derr.Error()})
		}
		return
	}

	s.status = StatusAuthenticated
	s.token = token
	s.user = user
	s.role = user.Role
	s.mu.Unlock()

	stored, _, err := s.durable.Get(ctx, storage.KeyRole)
	if err != nil {
		logger.Warn("session restore: reading stored role failed", map[string]any{"error": err.Error()})
	}
	if err != nil || stored != string(user.Role) {
		if err := s.durable.Set(ctx, storage.KeyRole, string(user.Role)); err != nil {
			logger.Warn("session restore: refreshing stored role failed", map[string]any{"error": err.Error()})
		}
	}

	logger.Info("session restored", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
}

func (s *Store) settleUnauthenticated(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		s.status = StatusUnauthenticated
	}
}

// clearLocked drops the in-memory identity. Callers hold s.mu.
func (s *Store) clearLocked() {
	s.status = StatusUnauthenticated
	s.token = ""
	s.user = nil
	s.role = ""
}

// Login authenticates against the backend. On success the token and role are
// persisted, the session is updated and exactly one transition is delivered
// before Login returns. On failure the session is untouched and the backend
// error is returned as is.
func (s *Store) Login(ctx context.Context, creds credentials.Credentials) (*api.AuthResponse, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.backend.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	prevToken, hadToken, err := s.durable.Get(ctx, storage.KeyToken)
	if err != nil {
		return nil, fmt.Errorf("reading session token: %w", err)
	}
	if err := s.durable.Set(ctx, storage.KeyToken, resp.Token); err != nil {
		return nil, fmt.Errorf("persisting session token: %w", err)
	}
	if err := s.durable.Set(ctx, storage.KeyRole, string(resp.User.Role)); err != nil {
		s.rollbackToken(ctx, prevToken, hadToken)
		return nil, fmt.Errorf("persisting session role: %w", err)
	}

	user := resp.User
	s.mu.Lock()
	s.status = StatusAuthenticated
	s.token = resp.Token
	s.user = &user
	s.role = user.Role
	s.epoch++
	s.mu.Unlock()

	logger.Info("login succeeded", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})

	delivered := user
	s.notify(ctx, Transition{Authenticated: true, User: &delivered, Reason: ReasonLogin})

	return resp, nil
}

// rollbackToken puts back the token slot as it was before a failed login,
// so storage keeps matching the session still held in memory.
func (s *Store) rollbackToken(ctx context.Context, prev string, had bool) {
	var err error
	if had {
		err = s.durable.Set(ctx, storage.KeyToken, prev)
	} else {
		err = s.durable.Delete(ctx, storage.KeyToken)
	}
	if err != nil {
		logger.Error("login: restoring previous token failed", map[string]any{"error": err.Error()})
	}
}

// Register creates an account. It never changes the session.
func (s *Store) Register(ctx context.Context, reg credentials.Registration) (*api.RegisterResponse, error) {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return s.backend.Register(ctx, reg)
}

// Logout clears the session and its durable slots, then delivers the
// transition. The in-memory state is always cleared and the transition always
// fires; storage errors are returned afterwards.
func (s *Store) Logout(ctx context.Context) error {
	return s.end(ctx, ReasonLogout)
}

// Expire ends a session the backend rejected with 401. It is a no-op when no
// session is held.
func (s *Store) Expire(ctx context.Context) error {
	if !s.IsAuthenticated(ctx) {
		return nil
	}
	return s.end(ctx, ReasonExpired)
}

func (s *Store) end(ctx context.Context, reason Reason) error {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	s.clearLocked()
	s.epoch++
	s.mu.Unlock()

	var errs []error
	if err := s.durable.Delete(ctx, storage.KeyToken, storage.KeyRole); err != nil {
		errs = append(errs, fmt.Errorf("clearing stored session: %w", err))
		logger.Error("logout: clearing stored session failed", map[string]any{"error": err.Error()})
	}

	logger.Info("session ended", map[string]any{
		"user_id": userID,
		"reason":  string(reason),
	})

	s.notify(ctx, Transition{Authenticated: false, Reason: reason})

	return errors.Join(errs...)
}

// IsAuthenticated reports whether a token is held in memory or is still
// present in durable storage. The storage check covers the window at startup
// before Initialize has copied the stored token into memory.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token != "" {
		return true
	}
	return storage.Has(ctx, s.durable, storage.KeyToken)
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Status:  s.status,
		Token:   s.token,
		Role:    s.role,
		Loading: s.loading,
	}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}
