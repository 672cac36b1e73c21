package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
)

// SessionKey is the local storage key holding the session token of the signed-in user
const SessionKey = "session"

const restoreTimeout = 5 * time.Second

// Listener receives the signed-in user, or nil after sign-out
type Listener func(user *models.User)

// Client is the provider as seen by one browser client. It restores the persisted
// session in the background and notifies listeners on every session change; the
// first notification marks the session as resolved.
type Client struct {
	svc     *Service
	storage storage.LocalStorage
	logger  logrus.FieldLogger

	mu        sync.Mutex
	user      *models.User
	resolved  bool
	listeners map[int]Listener
	nextID    int

	// emitMu keeps notifications in the order the changes happened.
	// Listeners must not call back into sign-in or sign-out.
	emitMu   sync.Mutex
	restored chan struct{}
}

// NewClient creates the client and starts restoring the session persisted in ls
func NewClient(svc *Service, ls storage.LocalStorage, logger logrus.FieldLogger) *Client {
	c := &Client{
		svc:       svc,
		storage:   ls,
		logger:    logger,
		listeners: make(map[int]Listener),
		restored:  make(chan struct{}),
	}
	go c.restore()
	return c
}

func (c *Client) restore() {
	defer close(c.restored)

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	token, ok, err := c.storage.GetItem(SessionKey)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read stored session")
		c.setUser(nil)
		return
	}
	if !ok {
		c.setUser(nil)
		return
	}

	user, err := c.svc.VerifySession(ctx, token)
	if err != nil {
		c.logger.WithError(err).Info("Stored session rejected")
		if rmErr := c.storage.RemoveItem(SessionKey); rmErr != nil {
			c.logger.WithError(rmErr).Warn("Failed to remove stored session")
		}
		c.setUser(nil)
		return
	}
	c.setUser(&user)
}

// OnAuthStateChanged registers fn for session changes and returns the function that
// unregisters it. When the session is already resolved fn is called right away.
func (c *Client) OnAuthStateChanged(fn Listener) func() {
	c.emitMu.Lock()
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	resolved, user := c.resolved, copyUser(c.user)
	c.mu.Unlock()
	if resolved {
		fn(user)
	}
	c.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// CurrentUser returns the signed-in user, or nil
func (c *Client) CurrentUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyUser(c.user)
}

// SignIn signs in with email and password and persists the session
func (c *Client) SignIn(ctx context.Context, email, password string) (models.User, error) {
	if err := c.awaitRestore(ctx); err != nil {
		return models.User{}, err
	}
	user, token, err := c.svc.SignIn(ctx, email, password)
	if err != nil {
		return models.User{}, err
	}
	c.persist(token)
	c.setUser(&user)
	return user, nil
}

// SignUp creates the account, signs it in and sets its display name. When the
// display name cannot be set the account stays signed in and the error is returned.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (models.User, error) {
	if err := c.awaitRestore(ctx); err != nil {
		return models.User{}, err
	}
	user, token, err := c.svc.SignUp(ctx, email, password)
	if err != nil {
		return models.User{}, err
	}
	c.persist(token)

	updated, err := c.svc.UpdateProfile(ctx, user.UID, displayName)
	if err != nil {
		c.setUser(&user)
		return user, err
	}
	c.setUser(&updated)
	return updated, nil
}

// SignOut forgets the session
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.awaitRestore(ctx); err != nil {
		return err
	}
	err := c.storage.RemoveItem(SessionKey)
	c.setUser(nil)
	if err != nil {
		return fmt.Errorf("failed to remove stored session: %w", err)
	}
	return nil
}

// SendPasswordReset mails a reset link to email
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.svc.SendPasswordReset(ctx, email)
}

// ConfirmPasswordReset sets a new password from a reset link token
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return c.svc.ConfirmPasswordReset(ctx, token, newPassword)
}

func (c *Client) awaitRestore(ctx context.Context) error {
	select {
	case <-c.restored:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) persist(token string) {
	if err := c.storage.SetItem(SessionKey, token); err != nil {
		c.logger.WithError(err).Warn("Failed to persist session, it will not survive a reload")
	}
}

func (c *Client) setUser(user *models.User) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.user = copyUser(user)
	c.resolved = true
	listeners := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(copyUser(user))
	}
}

func copyUser(user *models.User) *models.User {
	if user == nil {
		return nil
	}
	u := *user
	return &u
}
