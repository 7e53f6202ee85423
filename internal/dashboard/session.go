package dashboard

import (
	"context"
	"log/slog"
	"sync"
)

// Session tracks whether the dashboard may talk to the aggregator: whether
// authentication is required and which bearer token is stored. It is the
// single owner of TokenKey writes apart from the client's 401 handling.
type Session struct {
	client   *Client
	store    KeyValueStore
	notifier Notifier
	log      *slog.Logger

	mu           sync.RWMutex
	token        string
	authRequired bool
	resetHooks   []func()
}

// NewSession loads any stored token and registers itself as the client's
// 401 handler.
func NewSession(client *Client, store KeyValueStore, notifier Notifier, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		client:   client,
		store:    store,
		notifier: notifier,
		log:      log.With(slog.String("component", "session")),
	}
	if token, ok := store.Get(TokenKey); ok && token != "undefined" && token != "null" {
		s.token = token
	}
	client.OnUnauthorized(func() bool { return s.Invalidate() })
	return s
}

// OnReset registers fn to run when the session is invalidated or logged out,
// e.g. to drop cached rooms that belong to the old session.
func (s *Session) OnReset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetHooks = append(s.resetHooks, fn)
}

// IsAuthenticated is true when the aggregator does not require
// authentication or a token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.authRequired || s.token != ""
}

// AuthRequired reports the last known auth requirement.
func (s *Session) AuthRequired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authRequired
}

// CheckStatus probes GET /api/login and reports whether the dashboard is
// authenticated afterwards.
func (s *Session) CheckStatus(ctx context.Context) (bool, error) {
	status, err := s.client.AuthStatus(ctx)
	if err != nil {
		s.log.Warn("check auth status failed", slog.String("error", err.Error()))
		return false, err
	}

	s.mu.Lock()
	s.authRequired = status.AuthRequired
	if s.token == "" {
		if token, ok := s.store.Get(TokenKey); ok && token != "undefined" && token != "null" {
			s.token = token
		}
	}
	authenticated := !s.authRequired || s.token != ""
	s.mu.Unlock()

	return authenticated, nil
}

// Login exchanges credentials for a token and persists it. It returns true
// when the dashboard is authenticated afterwards.
func (s *Session) Login(ctx context.Context, username, password string) (bool, error) {
	result, err := s.client.Login(ctx, username, password)
	if err != nil {
		s.notifier.Error(Describe("login", err))
		return false, err
	}
	if result.Token == "" {
		s.mu.Lock()
		s.authRequired = result.AuthRequired
		s.mu.Unlock()
		return !result.AuthRequired, nil
	}

	if err := s.store.Set(TokenKey, result.Token); err != nil {
		wrapped := newError(KindUnknown, "persist token: "+err.Error(), err)
		s.notifier.Error(Describe("login", wrapped))
		return false, wrapped
	}
	s.mu.Lock()
	s.token = result.Token
	s.authRequired = true
	s.mu.Unlock()

	s.log.Info("logged in", slog.String("username", username))
	s.notifier.Success("logged in")
	return true, nil
}

// Logout forgets the token.
func (s *Session) Logout() {
	s.clear()
	s.notifier.Success("logged out")
}

// Invalidate is called when the aggregator rejects the token. A 401 implies
// authentication is required, so IsAuthenticated turns false. The warning
// is emitted once per held token; Invalidate reports whether it warned.
func (s *Session) Invalidate() bool {
	s.mu.Lock()
	hadToken := s.token != ""
	s.authRequired = true
	s.mu.Unlock()
	s.clear()

	if hadToken {
		s.log.Warn("session invalidated by upstream 401")
		s.notifier.Warning(msgAuthExpired)
	}
	return hadToken
}

func (s *Session) clear() {
	if err := s.store.Remove(TokenKey); err != nil {
		s.log.Error("remove token failed", slog.String("error", err.Error()))
	}
	s.mu.Lock()
	s.token = ""
	hooks := append([]func(){}, s.resetHooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
