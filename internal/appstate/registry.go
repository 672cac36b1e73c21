// Package appstate hosts one application instance per browser client: its local
// storage, auth client, session store and cart, created on first contact and
// closed after a period of inactivity.
package appstate

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/auth"
	"github.com/yishak-cs/restaurant_orders/internal/cart"
	"github.com/yishak-cs/restaurant_orders/internal/metrics"
	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/services"
	"github.com/yishak-cs/restaurant_orders/internal/session"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
)

const resumeTimeout = 10 * time.Second

// Instance is the state of one browser client
type Instance struct {
	ClientID string
	Storage  storage.LocalStorage
	Auth     *auth.Client
	Session  *session.Store
	Cart     *cart.Store

	checkout   *services.CheckoutService
	checkoutMu sync.Mutex
	lastSeen   time.Time
}

// PlaceOrder checks out the cart of this client. Checkouts of one client never overlap.
func (i *Instance) PlaceOrder(ctx context.Context, user models.User, addr models.DeliveryAddress) (string, error) {
	i.checkoutMu.Lock()
	defer i.checkoutMu.Unlock()
	return i.checkout.PlaceOrder(ctx, user, addr, i.Cart, i.Storage)
}

// Resume finishes an interrupted checkout of this client, if any
func (i *Instance) Resume(ctx context.Context) (string, bool, error) {
	i.checkoutMu.Lock()
	defer i.checkoutMu.Unlock()
	return i.checkout.Resume(ctx, i.Cart, i.Storage)
}

// Registry maps client ids to their instances
type Registry struct {
	backend     storage.Backend
	authSvc     *auth.Service
	checkout    *services.CheckoutService
	metrics     *metrics.Metrics
	idleTimeout time.Duration
	logger      logrus.FieldLogger
	now         func() time.Time

	mu        sync.Mutex
	instances map[string]*Instance

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry
func NewRegistry(backend storage.Backend, authSvc *auth.Service, checkout *services.CheckoutService, m *metrics.Metrics, idleTimeout time.Duration, logger logrus.FieldLogger) *Registry {
	return &Registry{
		backend:     backend,
		authSvc:     authSvc,
		checkout:    checkout,
		metrics:     m,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
		instances:   make(map[string]*Instance),
		stop:        make(chan struct{}),
	}
}

// Get returns the instance of clientID, creating it on first use
func (r *Registry) Get(clientID string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[clientID]; ok {
		inst.lastSeen = r.now()
		return inst, nil
	}

	ls, err := r.backend.For(clientID)
	if err != nil {
		return nil, err
	}
	log := r.logger.WithField("client_id", clientID)
	authClient := auth.NewClient(r.authSvc, ls, log)
	inst := &Instance{
		ClientID: clientID,
		Storage:  ls,
		Auth:     authClient,
		Session:  session.NewStore(authClient, log),
		Cart:     cart.NewStore(ls, log),
		checkout: r.checkout,
		lastSeen: r.now(),
	}
	r.instances[clientID] = inst
	r.metrics.SetActiveClients(len(r.instances))
	log.Debug("App instance created")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), resumeTimeout)
		defer cancel()
		if id, resumed, err := inst.Resume(ctx); err != nil {
			log.WithError(err).Warn("Failed to resume checkout")
		} else if resumed {
			log.WithField("order_id", id).Info("Interrupted checkout finished")
		}
	}()
	return inst, nil
}

// Len returns the number of live instances
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// EvictIdle closes instances not used within the idle timeout and returns how many
// were closed. Their carts and sessions stay in local storage.
func (r *Registry) EvictIdle() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	var idle []*Instance
	for id, inst := range r.instances {
		if inst.lastSeen.Before(cutoff) {
			idle = append(idle, inst)
			delete(r.instances, id)
		}
	}
	r.metrics.SetActiveClients(len(r.instances))
	r.mu.Unlock()

	for _, inst := range idle {
		inst.Session.Close()
		r.metrics.ClientEvicted()
		r.logger.WithField("client_id", inst.ClientID).Debug("Idle app instance closed")
	}
	return len(idle)
}

// StartSweeper evicts idle instances every interval until Close
func (r *Registry) StartSweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.EvictIdle(); n > 0 {
					r.logger.WithField("evicted", n).Info("Evicted idle clients")
				}
			case <-r.stop:
				return
			}
		}
	}()
}

// Close stops the sweeper and closes every instance
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, inst := range r.instances {
		inst.Session.Close()
		delete(r.instances, id)
	}
	r.metrics.SetActiveClients(0)
}
