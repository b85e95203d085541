// internal/service/order/domain/errors.go
package domain

import "errors"

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrCancellationNotAllowed  = errors.New("order cannot be cancelled in its current status")
	ErrReturnNotAllowed        = errors.New("order cannot be returned in its current status")
	ErrOrderNotReturnRequested = errors.New("order has no pending return request")
	ErrMemberNotFound          = errors.New("member not found")
	ErrInvalidOrder            = errors.New("invalid order")

	// ErrIllegalTransition 状态机拒绝的流转
	ErrIllegalTransition = errors.New("illegal order status transition")
	// ErrStaleStatus 条件更新时订单状态已被其他写入者修改
	ErrStaleStatus = errors.New("order status changed concurrently")
)
