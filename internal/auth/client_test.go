package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
)

type recorder struct {
	mu     sync.Mutex
	events []*models.User
	ch     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) listen(user *models.User) {
	r.mu.Lock()
	r.events = append(r.events, user)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no auth state notification")
	}
}

func (r *recorder) last() *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func TestClient_FirstNotificationWithoutSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := NewClient(svc, storage.NewMemory(), quietLogger())

	rec := newRecorder()
	unsubscribe := c.OnAuthStateChanged(rec.listen)
	defer unsubscribe()

	rec.wait(t)
	assert.Nil(t, rec.last())
	assert.Nil(t, c.CurrentUser())
}

func TestClient_SignUpSetsDisplayNameAndPersists(t *testing.T) {
	svc, _, _ := newTestService(t)
	ls := storage.NewMemory()
	c := NewClient(svc, ls, quietLogger())
	ctx := context.Background()

	rec := newRecorder()
	defer c.OnAuthStateChanged(rec.listen)()
	rec.wait(t)

	user, err := c.SignUp(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.DisplayName)

	rec.wait(t)
	require.NotNil(t, rec.last())
	assert.Equal(t, "Ana", rec.last().DisplayName)

	token, ok, err := ls.GetItem(SessionKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	// A new client on the same storage restores the session, as after a reload
	reloaded := NewClient(svc, ls, quietLogger())
	rec2 := newRecorder()
	defer reloaded.OnAuthStateChanged(rec2.listen)()
	rec2.wait(t)
	require.NotNil(t, rec2.last())
	assert.Equal(t, user.UID, rec2.last().UID)
}

func TestClient_SignInAndSignOut(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, _, err := svc.SignUp(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	ls := storage.NewMemory()
	c := NewClient(svc, ls, quietLogger())

	_, err = c.SignIn(ctx, "ana@example.com", "nope-nope")
	assert.Equal(t, CodeInvalidCredential, CodeOf(err))
	assert.Nil(t, c.CurrentUser())

	user, err := c.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, user.UID, c.CurrentUser().UID)

	require.NoError(t, c.SignOut(ctx))
	assert.Nil(t, c.CurrentUser())
	_, ok, err := ls.GetItem(SessionKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_RejectedStoredSessionIsRemoved(t *testing.T) {
	svc, _, _ := newTestService(t)
	ls := storage.NewMemory()
	require.NoError(t, ls.SetItem(SessionKey, "not-a-token"))

	c := NewClient(svc, ls, quietLogger())
	rec := newRecorder()
	defer c.OnAuthStateChanged(rec.listen)()
	rec.wait(t)

	assert.Nil(t, rec.last())
	_, ok, err := ls.GetItem(SessionKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_UnsubscribeStopsNotifications(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := NewClient(svc, storage.NewMemory(), quietLogger())

	rec := newRecorder()
	unsubscribe := c.OnAuthStateChanged(rec.listen)
	rec.wait(t)
	unsubscribe()
	unsubscribe()

	_, err := c.SignUp(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.events, 1)
}
