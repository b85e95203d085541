// internal/service/order/domain/port/collaborator.go
package port

import "context"

// CartService 在购物车下单后移除已购买的商品，尽力而为
type CartService interface {
	RemoveItems(ctx context.Context, memberID int64, productIDs []int64) error
}

// MemberDirectory 查询会员是否存在，不存在时返回 domain.ErrMemberNotFound
type MemberDirectory interface {
	Exists(ctx context.Context, memberID int64) error
}
