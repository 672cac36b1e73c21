package session

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yishak-cs/restaurant_orders/internal/auth"
	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
)

// fakeProvider delivers notifications only when the test says so
type fakeProvider struct {
	listener    auth.Listener
	unsubscribe int
	signInErr   error
}

func (p *fakeProvider) OnAuthStateChanged(fn auth.Listener) func() {
	p.listener = fn
	return func() { p.unsubscribe++ }
}

func (p *fakeProvider) SignIn(_ context.Context, email, _ string) (models.User, error) {
	if p.signInErr != nil {
		return models.User{}, p.signInErr
	}
	user := models.User{UID: "u1", Email: email}
	p.listener(&user)
	return user, nil
}

func (p *fakeProvider) SignUp(_ context.Context, email, _, displayName string) (models.User, error) {
	user := models.User{UID: "u2", Email: email, DisplayName: displayName}
	p.listener(&user)
	return user, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.listener(nil)
	return nil
}

func (p *fakeProvider) SendPasswordReset(context.Context, string) error { return nil }

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestStore_LoadingUntilFirstNotification(t *testing.T) {
	provider := &fakeProvider{}
	s := NewStore(provider, quietLogger())

	assert.True(t, s.Loading())
	_, ok := s.CurrentUser()
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitReady(ctx), context.DeadlineExceeded)

	provider.listener(nil)
	assert.False(t, s.Loading())
	require.NoError(t, s.WaitReady(context.Background()))

	// Later notifications keep loading false
	provider.listener(nil)
	assert.False(t, s.Loading())
}

func TestStore_FollowsProvider(t *testing.T) {
	provider := &fakeProvider{}
	s := NewStore(provider, quietLogger())
	provider.listener(nil)
	ctx := context.Background()

	_, err := s.Login(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	user, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "u1", user.UID)

	require.NoError(t, s.Logout(ctx))
	_, ok = s.CurrentUser()
	assert.False(t, ok)

	_, err = s.Signup(ctx, "bo@example.com", "secret1", "Bo")
	require.NoError(t, err)
	user, ok = s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Bo", user.DisplayName)
}

func TestStore_PropagatesProviderErrors(t *testing.T) {
	provider := &fakeProvider{signInErr: &auth.Error{Code: auth.CodeInvalidCredential, Message: "bad"}}
	s := NewStore(provider, quietLogger())
	provider.listener(nil)

	_, err := s.Login(context.Background(), "ana@example.com", "wrong")
	assert.Equal(t, auth.CodeInvalidCredential, auth.CodeOf(err))
	_, ok := s.CurrentUser()
	assert.False(t, ok)
}

func TestStore_CloseUnsubscribes(t *testing.T) {
	provider := &fakeProvider{}
	s := NewStore(provider, quietLogger())
	s.Close()
	assert.Equal(t, 1, provider.unsubscribe)
}

func TestStore_WithAuthClient(t *testing.T) {
	svc, err := auth.NewService(database.NewMemoryStore(), auth.LogMailer{Logger: quietLogger()}, auth.Config{
		Secret:   "test-secret-0123456789",
		HashCost: bcrypt.MinCost,
	}, quietLogger())
	require.NoError(t, err)

	ls := storage.NewMemory()
	s := NewStore(auth.NewClient(svc, ls, quietLogger()), quietLogger())
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx))
	assert.False(t, s.Loading())

	_, err = s.Signup(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)
	user, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Ana", user.DisplayName)

	// Same local storage, fresh instance: the session comes back
	restored := NewStore(auth.NewClient(svc, ls, quietLogger()), quietLogger())
	defer restored.Close()
	require.NoError(t, restored.WaitReady(ctx))
	again, ok := restored.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, user.UID, again.UID)

	require.NoError(t, restored.Logout(ctx))
	_, ok = restored.CurrentUser()
	assert.False(t, ok)
}
