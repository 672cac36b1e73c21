// Package session exposes the signed-in user of one client to the views and route guards.
package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/auth"
	"github.com/yishak-cs/restaurant_orders/internal/models"
)

// Provider is the auth client surface the store depends on
type Provider interface {
	OnAuthStateChanged(fn auth.Listener) func()
	SignIn(ctx context.Context, email, password string) (models.User, error)
	SignUp(ctx context.Context, email, password, displayName string) (models.User, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
}

// Store tracks the current user. It is Loading until the provider delivers its first
// session notification.
type Store struct {
	provider Provider
	logger   logrus.FieldLogger

	mu      sync.RWMutex
	user    *models.User
	loading bool

	ready       chan struct{}
	readyOnce   sync.Once
	unsubscribe func()
}

// NewStore subscribes to provider for the lifetime of the store
func NewStore(provider Provider, logger logrus.FieldLogger) *Store {
	s := &Store{
		provider: provider,
		logger:   logger,
		loading:  true,
		ready:    make(chan struct{}),
	}
	s.unsubscribe = provider.OnAuthStateChanged(s.onChange)
	return s
}

func (s *Store) onChange(user *models.User) {
	s.mu.Lock()
	s.user = user
	s.loading = false
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	if user != nil {
		s.logger.WithField("uid", user.UID).Debug("Session changed")
	} else {
		s.logger.Debug("Session cleared")
	}
}

// CurrentUser returns the signed-in user and whether there is one
func (s *Store) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Loading reports whether the first session notification is still outstanding
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// WaitReady blocks until the session is resolved or ctx is done
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login signs in; failures are the provider's *auth.Error unchanged
func (s *Store) Login(ctx context.Context, email, password string) (models.User, error) {
	return s.provider.SignIn(ctx, email, password)
}

// Signup creates the account and sets its display name
func (s *Store) Signup(ctx context.Context, email, password, displayName string) (models.User, error) {
	return s.provider.SignUp(ctx, email, password, displayName)
}

// Logout ends the session
func (s *Store) Logout(ctx context.Context) error {
	return s.provider.SignOut(ctx)
}

// ResetPassword asks the provider to mail a reset link
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	return s.provider.SendPasswordReset(ctx, email)
}

// Close stops following session changes
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
