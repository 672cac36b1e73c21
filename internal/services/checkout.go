package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/events"
	"github.com/yishak-cs/restaurant_orders/internal/metrics"
	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
)

// JournalKey is the local storage key of an unfinished checkout
const JournalKey = "checkout"

// RetryConfig configures retries of the order write
type RetryConfig struct {
	// MaxAttempts counts the first attempt
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry policy of the order write
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Cart is the part of a client cart checkout needs
type Cart interface {
	Snapshot() ([]models.CartLineItem, float64)
	RemoveSnapshot(items []models.CartLineItem) error
}

// journal is the checkout record kept in local storage until the cart is cleared
type journal struct {
	Order   models.Order `json:"order"`
	Written bool         `json:"written"`
}

// CheckoutService turns a cart into an order. A checkout is journaled in the
// client's local storage before the order is written, so a checkout interrupted
// between the write and the cart clear is finished by Resume instead of being
// written twice. A journaled checkout whose order never reached the store is
// dropped, never replayed.
type CheckoutService struct {
	store     database.DocumentStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	retry     RetryConfig
	logger    logrus.FieldLogger

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(store database.DocumentStore, publisher events.Publisher, m *metrics.Metrics, retry RetryConfig, logger logrus.FieldLogger) *CheckoutService {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &CheckoutService{
		store:     store,
		publisher: publisher,
		metrics:   m,
		retry:     retry,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		sleep:     sleepContext,
	}
}

// ValidateAddress trims addr and reports every missing required field
func ValidateAddress(addr models.DeliveryAddress) (models.DeliveryAddress, error) {
	addr = models.DeliveryAddress{
		Street:       strings.TrimSpace(addr.Street),
		City:         strings.TrimSpace(addr.City),
		State:        strings.TrimSpace(addr.State),
		ZipCode:      strings.TrimSpace(addr.ZipCode),
		Phone:        strings.TrimSpace(addr.Phone),
		Instructions: strings.TrimSpace(addr.Instructions),
	}

	var fields fieldErrors
	fields.require("street", addr.Street)
	fields.require("city", addr.City)
	fields.require("state", addr.State)
	fields.require("zipCode", addr.ZipCode)
	fields.require("phone", addr.Phone)
	return addr, fields.err("Please fill in all required fields")
}

// PlaceOrder writes the cart as an order for user and removes the ordered items
// from the cart. It returns the order id. An earlier checkout of the client still
// in the journal is settled first; when it was placed by the same user and left
// nothing else in the cart, its id is returned.
func (s *CheckoutService) PlaceOrder(ctx context.Context, user models.User, addr models.DeliveryAddress, cart Cart, ls storage.LocalStorage) (string, error) {
	prev, resumed, err := s.settle(ctx, cart, ls)
	if err != nil {
		return "", err
	}

	addr, err = ValidateAddress(addr)
	if err != nil {
		return "", err
	}
	items, total := cart.Snapshot()
	if len(items) == 0 {
		if resumed && prev.UserID == user.UID {
			return prev.ID, nil
		}
		return "", &ValidationError{Fields: []string{"items"}, Message: "Your cart is empty"}
	}

	j := journal{Order: models.Order{
		ID:              s.newID(),
		UserID:          user.UID,
		Items:           items,
		Total:           total,
		Status:          models.StatusPending,
		PaymentMethod:   models.PaymentMethodCOD,
		DeliveryAddress: addr,
		CreatedAt:       s.now().UTC(),
	}}
	if err := s.saveJournal(ls, j); err != nil {
		s.metrics.CheckoutFailed("journal")
		return "", fmt.Errorf("failed to record checkout: %w", err)
	}

	if err := s.complete(ctx, j, cart, ls); err != nil {
		return "", err
	}
	return j.Order.ID, nil
}

// Resume finishes a journaled checkout of the client whose order was written. It
// reports the order id and whether such a checkout was found.
func (s *CheckoutService) Resume(ctx context.Context, cart Cart, ls storage.LocalStorage) (string, bool, error) {
	order, resumed, err := s.settle(ctx, cart, ls)
	if err != nil || !resumed {
		return "", resumed, err
	}
	return order.ID, true, nil
}

// settle resolves the journal left by an earlier checkout. A journal not marked as
// written is looked up in the store: a missing order means the checkout failed and
// the journal is dropped.
func (s *CheckoutService) settle(ctx context.Context, cart Cart, ls storage.LocalStorage) (models.Order, bool, error) {
	raw, ok, err := ls.GetItem(JournalKey)
	if err != nil {
		return models.Order{}, false, fmt.Errorf("failed to read checkout journal: %w", err)
	}
	if !ok {
		return models.Order{}, false, nil
	}

	var j journal
	if err := json.Unmarshal([]byte(raw), &j); err != nil || j.Order.ID == "" {
		s.logger.WithError(err).Warn("Discarding unreadable checkout journal")
		s.removeJournal(ls)
		return models.Order{}, false, nil
	}

	log := s.logger.WithField("order_id", j.Order.ID)
	if !j.Written {
		_, err := s.store.Get(ctx, database.CollectionOrders, j.Order.ID)
		if errors.Is(err, database.ErrNotFound) {
			log.Info("Discarding failed checkout")
			s.removeJournal(ls)
			return models.Order{}, false, nil
		}
		if err != nil {
			return models.Order{}, false, storeError("check order", err)
		}
		j.Written = true
	}

	log.Info("Resuming interrupted checkout")
	if err := s.complete(ctx, j, cart, ls); err != nil {
		return models.Order{}, false, err
	}
	return j.Order, true, nil
}

// complete runs the write and clear steps of a journaled checkout
func (s *CheckoutService) complete(ctx context.Context, j journal, cart Cart, ls storage.LocalStorage) error {
	log := s.logger.WithField("order_id", j.Order.ID)

	if !j.Written {
		if err := s.writeOrder(ctx, j.Order); err != nil {
			s.metrics.CheckoutFailed("write")
			return storeError("place order", err)
		}
		s.metrics.OrderPlaced(j.Order.Total)
		s.publishCreated(ctx, j.Order)

		j.Written = true
		if err := s.saveJournal(ls, j); err != nil {
			log.WithError(err).Warn("Failed to mark checkout as written")
		}
	}

	// The order exists from here on; a failed clear is retried by the next Resume
	if err := cart.RemoveSnapshot(j.Order.Items); err != nil {
		s.metrics.CheckoutFailed("clear")
		log.WithError(err).Warn("Order placed but cart could not be cleared")
		return nil
	}
	s.removeJournal(ls)
	log.WithField("total", j.Order.Total).Info("Order placed")
	return nil
}

// writeOrder creates the order under its pre-assigned id, retrying transient
// failures. An order that already exists was written by an earlier attempt.
func (s *CheckoutService) writeOrder(ctx context.Context, order models.Order) error {
	backoff := s.retry.InitialBackoff
	var err error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		err = s.store.Create(ctx, database.CollectionOrders, order.ID, orderFields(order))
		if err == nil || errors.Is(err, database.ErrAlreadyExists) {
			return nil
		}
		if attempt == s.retry.MaxAttempts || ctx.Err() != nil {
			break
		}

		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"attempt":  attempt,
		}).Warn("Order write failed, retrying")
		if sleepErr := s.sleep(ctx, backoff); sleepErr != nil {
			break
		}
		backoff = time.Duration(float64(backoff) * s.retry.BackoffMultiplier)
		if s.retry.MaxBackoff > 0 && backoff > s.retry.MaxBackoff {
			backoff = s.retry.MaxBackoff
		}
	}
	return err
}

func (s *CheckoutService) publishCreated(ctx context.Context, order models.Order) {
	event := events.OrderCreated{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		ItemCount: order.ItemCount(),
		CreatedAt: order.CreatedAt,
	}
	if err := s.publisher.PublishJSON(ctx, events.KeyOrderCreated, event); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to publish order event")
	}
}

func (s *CheckoutService) saveJournal(ls storage.LocalStorage, j journal) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return ls.SetItem(JournalKey, string(raw))
}

func (s *CheckoutService) removeJournal(ls storage.LocalStorage) {
	if err := ls.RemoveItem(JournalKey); err != nil {
		s.logger.WithError(err).Warn("Failed to remove checkout journal")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
