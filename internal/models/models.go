package models

import (
	"math"
	"time"
)

// PaymentMethodCOD is the only payment method; orders are paid on delivery
const PaymentMethodCOD = "COD"

// UnknownCategoryName is shown for recipes whose category no longer exists
const UnknownCategoryName = "Unknown"

// Category groups recipes on the menu
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recipe is a menu item that can be added to the cart
type Recipe struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CategoryID   string    `json:"categoryId"`
	CategoryName string    `json:"categoryName,omitempty"`
	Ingredients  []string  `json:"ingredients"`
	Price        float64   `json:"price"`
	Image        string    `json:"image"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CartLineItem pairs a recipe snapshot with a quantity
type CartLineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	Quantity int     `json:"quantity"`
}

// Subtotal returns price * quantity
func (i CartLineItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// LineItemFromRecipe takes the snapshot of a recipe that goes into the cart
func LineItemFromRecipe(r Recipe) CartLineItem {
	return CartLineItem{ID: r.ID, Name: r.Name, Price: r.Price, Image: r.Image}
}

// DeliveryAddress is where a cash-on-delivery order is taken
type DeliveryAddress struct {
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Phone        string `json:"phone"`
	Instructions string `json:"instructions,omitempty"`
}

// Order is a submitted cart. Items and Total never change after submission.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []CartLineItem  `json:"items"`
	Total           float64         `json:"total"`
	Status          OrderStatus     `json:"status"`
	PaymentMethod   string          `json:"paymentMethod"`
	DeliveryAddress DeliveryAddress `json:"deliveryAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ItemCount returns the number of units across all line items
func (o Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// Role separates storefront customers from restaurant staff
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is an account of the auth provider
type User struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// IsAdmin reports whether the user may use the admin area
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RoundCents rounds an amount to two decimals
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
