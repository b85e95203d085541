// internal/service/inventory/domain/errors.go
package domain

import "errors"

var (
	ErrPurchaseTimeInvalid = errors.New("purchase time has not started")
	ErrStockInsufficient   = errors.New("stock insufficient")
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidQuantity     = errors.New("quantity must be positive")

	// ErrCacheMiss 由缓存端口返回，不会暴露给调用方
	ErrCacheMiss = errors.New("stock cache miss")
)
