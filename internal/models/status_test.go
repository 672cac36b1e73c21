package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("  Out For Delivery ")
	require.NoError(t, err)
	assert.Equal(t, StatusOutForDelivery, status)

	_, err = ParseOrderStatus("shipped")
	assert.Error(t, err)
}

func TestOpenTransitions_AllowAnyKnownPair(t *testing.T) {
	table := OpenTransitions()
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			assert.True(t, table.Allows(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStrictTransitions_TerminalStatesStayClosed(t *testing.T) {
	table := StrictTransitions()

	assert.True(t, table.Allows(StatusPending, StatusPreparing))
	assert.True(t, table.Allows(StatusOutForDelivery, StatusDelivered))
	assert.True(t, table.Allows(StatusDelivered, StatusDelivered))
	assert.False(t, table.Allows(StatusDelivered, StatusPending))
	assert.False(t, table.Allows(StatusCancelled, StatusPreparing))
	assert.False(t, table.Allows(StatusOutForDelivery, StatusPending))
}

func TestOrder_ItemCountAndRounding(t *testing.T) {
	order := Order{Items: []CartLineItem{
		{ID: "r1", Price: 10, Quantity: 2},
		{ID: "r2", Price: 5.5, Quantity: 1},
	}}
	assert.Equal(t, 3, order.ItemCount())
	assert.Equal(t, 20.0, order.Items[0].Subtotal())
	assert.Equal(t, 0.3, RoundCents(0.1+0.2))
}
