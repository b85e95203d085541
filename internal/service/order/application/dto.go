// internal/service/order/application/dto.go
package application

import "stockflow/internal/service/order/domain"

// CreateOrderCommand 是创建订单用例的输入数据
type CreateOrderCommand struct {
	MemberID  int64
	LineItems []domain.LineItem
	Shipping  domain.ShippingInfo
	FromCart  bool // 从购物车下单时，成功后通知购物车移除已购商品
}

func (c CreateOrderCommand) productIDs() []int64 {
	ids := make([]int64, 0, len(c.LineItems))
	for _, item := range c.LineItems {
		ids = append(ids, item.ProductID)
	}
	return ids
}
