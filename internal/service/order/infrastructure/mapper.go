// internal/service/order/infrastructure/mapper.go
package infrastructure

import "stockflow/internal/service/order/domain"

func ToDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:            m.ID,
		MemberID:      m.MemberID,
		TotalPrice:    m.TotalPrice,
		TotalQuantity: m.TotalQuantity,
		Status:        domain.Status(m.Status),
		LineItems:     make([]domain.LineItem, 0, len(m.LineItems)),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for _, li := range m.LineItems {
		o.LineItems = append(o.LineItems, domain.LineItem{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}
	return o
}

func FromDomainOrder(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:            o.ID,
		MemberID:      o.MemberID,
		TotalPrice:    o.TotalPrice,
		TotalQuantity: o.TotalQuantity,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		LineItems:     make([]OrderLineItemModel, 0, len(o.LineItems)),
	}
	for _, li := range o.LineItems {
		m.LineItems = append(m.LineItems, OrderLineItemModel{
			OrderID:   o.ID,
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}
	return m
}
