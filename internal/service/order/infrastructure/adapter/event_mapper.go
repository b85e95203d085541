// internal/service/order/infrastructure/adapter/event_mapper.go
package adapter

import (
	"stockflow/internal/pkg/event"
	"stockflow/internal/service/order/domain"
)

func toEventOrder(o *domain.Order) event.Order {
	return event.Order{
		ID:            o.ID,
		MemberID:      o.MemberID,
		TotalPrice:    o.TotalPrice,
		TotalQuantity: o.TotalQuantity,
		Status:        string(o.Status),
	}
}

func toEventLineItems(items []domain.LineItem) []event.LineItem {
	out := make([]event.LineItem, 0, len(items))
	for _, li := range items {
		out = append(out, event.LineItem{ProductID: li.ProductID, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}
	return out
}
