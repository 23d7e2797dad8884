// Package auth holds the signed-in user's session.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/optima-study/optima/internal/client"
)

// Backend is the subset of the API client the session needs.
type Backend interface {
	Login(ctx context.Context, creds client.Credentials) (client.LoginResponse, error)
	Register(ctx context.Context, reg client.Registration) error
	Me(ctx context.Context) (client.User, error)
	Logout(ctx context.Context) error
}

// State is a point-in-time copy of the session.
type State struct {
	User            *client.User
	IsAuthenticated bool
	Loading         bool
}

// Session is the single owner of authentication state. Commands receive it
// by injection; the HTTP client's unauthorized hook calls Invalidate.
type Session struct {
	backend Backend
	tokens  client.TokenStore
	logger  *slog.Logger

	mu            sync.RWMutex
	user          *client.User
	authenticated bool
	loading       bool
}

func NewSession(backend Backend, tokens client.TokenStore, logger *slog.Logger) *Session {
	return &Session{
		backend: backend,
		tokens:  tokens,
		logger:  logger,
		loading: true,
	}
}

// Init restores the session from the stored token. Without a token the user
// is signed out; with one, the profile fetch decides, and any failure clears
// the token.
func (s *Session) Init(ctx context.Context) error {
	defer s.setLoading(false)

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.clear()
		return fmt.Errorf("failed to read auth token: %w", err)
	}
	if token == "" {
		s.clear()
		return nil
	}

	user, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Info("stored session is no longer valid", "error", err)
		s.clear()
		if clearErr := s.tokens.ClearToken(ctx); clearErr != nil {
			s.logger.Error("failed to clear auth token", "error", clearErr)
		}
		return nil
	}

	s.mu.Lock()
	s.user = &user
	s.authenticated = true
	s.mu.Unlock()
	return nil
}

// Login signs in. The returned token, when present, is stored before the
// profile is fetched. A failing profile fetch still leaves the user signed
// in, except for a 401, which rejects the new token and ends the session.
func (s *Session) Login(ctx context.Context, creds client.Credentials) error {
	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.backend.Login(ctx, creds)
	if err != nil {
		return err
	}
	if resp.AccessToken != "" {
		if err := s.tokens.SetToken(ctx, resp.AccessToken); err != nil {
			return fmt.Errorf("failed to store auth token: %w", err)
		}
	}

	var profile *client.User
	if user, err := s.backend.Me(ctx); client.IsKind(err, client.KindUnauthorized) {
		s.clear()
		if clearErr := s.tokens.ClearToken(ctx); clearErr != nil {
			s.logger.Error("failed to clear auth token", "error", clearErr)
		}
		return err
	} else if err != nil {
		s.logger.Warn("signed in but profile fetch failed", "error", err)
	} else {
		profile = &user
	}

	s.mu.Lock()
	s.user = profile
	s.authenticated = true
	s.mu.Unlock()
	return nil
}

// Register creates an account without signing in.
func (s *Session) Register(ctx context.Context, reg client.Registration) error {
	s.setLoading(true)
	defer s.setLoading(false)
	return s.backend.Register(ctx, reg)
}

// Logout tells the backend, ignoring its answer, and always clears local
// state.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Debug("logout request failed", "error", err)
	}
	s.clear()
	if err := s.tokens.ClearToken(ctx); err != nil {
		return fmt.Errorf("failed to clear auth token: %w", err)
	}
	return nil
}

// Invalidate drops the in-memory session. The token itself is cleared by the
// caller that observed the 401.
func (s *Session) Invalidate() {
	s.logger.Info("session invalidated")
	s.clear()
}

func (s *Session) User() *client.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{User: s.user, IsAuthenticated: s.authenticated, Loading: s.loading}
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.authenticated = false
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}
