package services

import (
	"context"

	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/models"
)

// OrderService answers the customer's order views
type OrderService struct {
	store database.DocumentStore
}

// NewOrderService creates a new order service
func NewOrderService(store database.DocumentStore) *OrderService {
	return &OrderService{store: store}
}

// ListForUser returns the orders placed by uid, newest first
func (s *OrderService) ListForUser(ctx context.Context, uid string) ([]models.Order, error) {
	docs, err := s.store.Query(ctx, database.CollectionOrders, database.Where("userId", uid).Order("createdAt", true))
	if err != nil {
		return nil, storeError("list orders", err)
	}
	orders := make([]models.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc))
	}
	return orders, nil
}

// GetForUser returns an order placed by uid. Orders of other users are reported
// as not found.
func (s *OrderService) GetForUser(ctx context.Context, uid, orderID string) (models.Order, error) {
	doc, err := s.store.Get(ctx, database.CollectionOrders, orderID)
	if err != nil {
		return models.Order{}, storeError("get order", err)
	}
	order := orderFromDocument(doc)
	if order.UserID != uid {
		return models.Order{}, storeError("get order", database.ErrNotFound)
	}
	return order, nil
}
