package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yishak-cs/restaurant_orders/internal/models"
)

type checkoutRequest struct {
	DeliveryAddress models.DeliveryAddress `json:"deliveryAddress"`
}

// CheckoutView returns what the checkout form shows: the cart and the user
func (h *APIHandler) CheckoutView(c *gin.Context) {
	resp := cartResponse(instance(c).Cart)
	resp["user"] = currentUser(c)
	resp["paymentMethod"] = models.PaymentMethodCOD
	c.JSON(http.StatusOK, resp)
}

// PlaceOrder turns the cart into an order
func (h *APIHandler) PlaceOrder(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	orderID, err := instance(c).PlaceOrder(ctx, currentUser(c), req.DeliveryAddress)
	if err != nil {
		h.respondError(c, err, "Failed to place order. Please try again.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"orderId":  orderID,
		"redirect": "/order-confirmation/" + orderID,
	})
}

// ListOrders returns the order history of the user
func (h *APIHandler) ListOrders(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	orders, err := h.orders.ListForUser(ctx, currentUser(c).UID)
	if err != nil {
		h.respondError(c, err, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrder returns one order of the user
func (h *APIHandler) GetOrder(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := h.orders.GetForUser(ctx, currentUser(c).UID, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to fetch order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
