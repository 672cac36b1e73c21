// Package cart holds the shopping cart of one client, mirrored to its local storage.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
)

// StorageKey is the local storage key holding the JSON array of line items
const StorageKey = "cart"

// ParseError reports a stored cart payload that could not be decoded
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("corrupt cart payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Store is the cart of one client. Mutations never fail: every change is written
// to local storage synchronously and write errors are only logged.
type Store struct {
	mu      sync.Mutex
	items   []models.CartLineItem
	storage storage.LocalStorage
	logger  logrus.FieldLogger
}

// NewStore restores the cart from local storage. A missing or corrupt payload
// yields an empty cart.
func NewStore(ls storage.LocalStorage, logger logrus.FieldLogger) *Store {
	s := &Store{storage: ls, logger: logger}

	items, err := load(ls)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			logger.WithError(err).Warn("Discarding stored cart")
			if rmErr := ls.RemoveItem(StorageKey); rmErr != nil {
				logger.WithError(rmErr).Warn("Failed to remove corrupt cart")
			}
		} else {
			logger.WithError(err).Warn("Failed to read stored cart")
		}
		items = nil
	}
	s.items = items
	return s
}

func load(ls storage.LocalStorage) ([]models.CartLineItem, error) {
	raw, ok, err := ls.GetItem(StorageKey)
	if err != nil || !ok {
		return nil, err
	}
	var items []models.CartLineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &ParseError{Err: err}
	}

	// Entries without an id or with a quantity below one are dropped
	valid := items[:0]
	for _, item := range items {
		if item.ID == "" || item.Quantity < 1 {
			continue
		}
		valid = append(valid, item)
	}
	return valid, nil
}

// Add puts one unit of item in the cart
func (s *Store) Add(item models.CartLineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i].Quantity++
			s.persist()
			return
		}
	}
	item.Quantity = 1
	s.items = append(s.items, item)
	s.persist()
}

// Remove drops the line item with id; a missing id is a no-op
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(id)
}

func (s *Store) remove(id string) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.persist()
}

// SetQuantity sets the quantity of id; n below 1 removes the line item
func (s *Store) SetQuantity(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 1 {
		s.remove(id)
		return
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity = n
			break
		}
	}
	s.persist()
}

// Clear empties the cart
func (s *Store) Clear() {
	_ = s.Reset()
}

// Reset empties the cart and reports whether the empty cart reached local storage.
// Checkout uses it to know when the cart is durably cleared.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return s.persist()
}

// Items returns a copy of the line items in the order they were added
func (s *Store) Items() []models.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Total is the sum of price * quantity, rounded to cents
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.items)
}

// Count is the number of units in the cart
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Snapshot returns the items and their total under one lock
func (s *Store) Snapshot() ([]models.CartLineItem, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CartLineItem, len(s.items))
	copy(out, s.items)
	return out, total(s.items)
}

func total(items []models.CartLineItem) float64 {
	sum := 0.0
	for _, item := range items {
		sum += item.Subtotal()
	}
	return models.RoundCents(sum)
}

// RemoveSnapshot takes the quantities of items out of the cart, dropping lines
// that reach zero. Units added after the snapshot was taken stay in the cart.
// The cart is left unchanged when the result cannot be persisted.
func (s *Store) RemoveSnapshot(items []models.CartLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]int, len(items))
	for _, item := range items {
		taken[item.ID] += item.Quantity
	}
	next := make([]models.CartLineItem, 0, len(s.items))
	for _, item := range s.items {
		item.Quantity -= taken[item.ID]
		if item.Quantity >= 1 {
			next = append(next, item)
		}
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// persist must be called with mu held
func (s *Store) persist() error {
	return s.write(s.items)
}

func (s *Store) write(items []models.CartLineItem) error {
	if items == nil {
		items = []models.CartLineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode cart")
		return err
	}
	if err := s.storage.SetItem(StorageKey, string(raw)); err != nil {
		s.logger.WithError(err).Error("Failed to persist cart")
		return err
	}
	return nil
}
