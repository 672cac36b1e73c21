package services

import (
	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/models"
)

func categoryFromDocument(doc database.Document) models.Category {
	return models.Category{
		ID:        doc.ID,
		Name:      doc.String("name"),
		Image:     doc.String("image"),
		CreatedAt: doc.Time("createdAt"),
	}
}

func recipeFromDocument(doc database.Document) models.Recipe {
	return models.Recipe{
		ID:          doc.ID,
		Name:        doc.String("name"),
		CategoryID:  doc.String("categoryId"),
		Ingredients: doc.Strings("ingredients"),
		Price:       doc.Float("price"),
		Image:       doc.String("image"),
		CreatedAt:   doc.Time("createdAt"),
	}
}

func lineItemFields(items []models.CartLineItem) []map[string]interface{} {
	out := make([]map[string]interface{}, len(items))
	for i, item := range items {
		out[i] = map[string]interface{}{
			"id":       item.ID,
			"name":     item.Name,
			"price":    item.Price,
			"image":    item.Image,
			"quantity": item.Quantity,
		}
	}
	return out
}

func orderFields(order models.Order) map[string]interface{} {
	addr := order.DeliveryAddress
	return map[string]interface{}{
		"userId":        order.UserID,
		"items":         lineItemFields(order.Items),
		"total":         order.Total,
		"status":        string(order.Status),
		"paymentMethod": order.PaymentMethod,
		"deliveryAddress": map[string]interface{}{
			"street":       addr.Street,
			"city":         addr.City,
			"state":        addr.State,
			"zipCode":      addr.ZipCode,
			"phone":        addr.Phone,
			"instructions": addr.Instructions,
		},
		"createdAt": order.CreatedAt,
	}
}

func orderFromDocument(doc database.Document) models.Order {
	var items []models.CartLineItem
	for _, item := range doc.Maps("items") {
		items = append(items, models.CartLineItem{
			ID:       item.String("id"),
			Name:     item.String("name"),
			Price:    item.Float("price"),
			Image:    item.String("image"),
			Quantity: item.Int("quantity"),
		})
	}
	addr := doc.Map("deliveryAddress")
	return models.Order{
		ID:            doc.ID,
		UserID:        doc.String("userId"),
		Items:         items,
		Total:         doc.Float("total"),
		Status:        models.OrderStatus(doc.String("status")),
		PaymentMethod: doc.String("paymentMethod"),
		DeliveryAddress: models.DeliveryAddress{
			Street:       addr.String("street"),
			City:         addr.String("city"),
			State:        addr.String("state"),
			ZipCode:      addr.String("zipCode"),
			Phone:        addr.String("phone"),
			Instructions: addr.String("instructions"),
		},
		CreatedAt: doc.Time("createdAt"),
	}
}
