package models

import (
	"fmt"
	"strings"
)

// OrderStatus is the delivery state of an order
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out for delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// AllStatuses lists the statuses in display order
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusPreparing,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// ParseOrderStatus accepts any known status, case-insensitively
func ParseOrderStatus(raw string) (OrderStatus, error) {
	normalized := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range AllStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// IsTerminal reports whether no further work happens on the order
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// TransitionTable maps a status to the statuses that may follow it
type TransitionTable map[OrderStatus][]OrderStatus

// Allows reports whether from -> to is permitted. Setting the current status again
// is always allowed.
func (t TransitionTable) Allows(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OpenTransitions lets staff move an order between any two known statuses
func OpenTransitions() TransitionTable {
	table := TransitionTable{}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			if from != to {
				table[from] = append(table[from], to)
			}
		}
	}
	return table
}

// StrictTransitions keeps delivered and cancelled orders closed
func StrictTransitions() TransitionTable {
	return TransitionTable{
		StatusPending:        {StatusPreparing, StatusOutForDelivery, StatusDelivered, StatusCancelled},
		StatusPreparing:      {StatusPending, StatusOutForDelivery, StatusDelivered, StatusCancelled},
		StatusOutForDelivery: {StatusPreparing, StatusDelivered, StatusCancelled},
	}
}
