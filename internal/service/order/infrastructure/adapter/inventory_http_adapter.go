// internal/service/order/infrastructure/adapter/inventory_http_adapter.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"stockflow/internal/pkg/httpclient"
	"stockflow/internal/pkg/lock"
	invdomain "stockflow/internal/service/inventory/domain"
)

// ServiceResolver 返回下游服务的 base URL，例如通过 Nacos 服务发现
type ServiceResolver func(ctx context.Context) (string, error)

// StaticResolver 总是返回固定地址
func StaticResolver(baseURL string) ServiceResolver {
	return func(context.Context) (string, error) { return baseURL, nil }
}

// 库存服务返回的错误码到领域错误的映射
var inventoryErrorCodes = map[string]error{
	"PurchaseTimeInvalid": invdomain.ErrPurchaseTimeInvalid,
	"StockInsufficient":   invdomain.ErrStockInsufficient,
	"LockUnavailable":     lock.ErrLockUnavailable,
	"ProductNotFound":     invdomain.ErrProductNotFound,
	"InvalidQuantity":     invdomain.ErrInvalidQuantity,
}

// InventoryHTTPAdapter 通过库存服务的 HTTP 接口实现 port.InventoryService。
type InventoryHTTPAdapter struct {
	client  *httpclient.Client
	resolve ServiceResolver
}

func NewInventoryHTTPAdapter(client *httpclient.Client, resolve ServiceResolver) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, resolve: resolve}
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type stockRequest struct {
	Quantity int `json:"quantity"`
}

func (a *InventoryHTTPAdapter) CheckAvailability(ctx context.Context, productID int64, quantity int) (bool, error) {
	base, err := a.resolve(ctx)
	if err != nil {
		return false, err
	}
	params := url.Values{}
	params.Set("quantity", strconv.Itoa(quantity))

	var resp availabilityResponse
	if err := a.client.Get(ctx, productURL(base, productID, "availability"), params, &resp); err != nil {
		return false, translate(err)
	}
	return resp.Available, nil
}

// ReserveStock 实现了预占库存的HTTP调用逻辑。
func (a *InventoryHTTPAdapter) ReserveStock(ctx context.Context, productID int64, quantity int) error {
	return a.mutate(ctx, productID, "reserve", quantity)
}

// RollbackStock 实现了释放库存的补偿逻辑。
func (a *InventoryHTTPAdapter) RollbackStock(ctx context.Context, productID int64, quantity int) error {
	return a.mutate(ctx, productID, "rollback", quantity)
}

func (a *InventoryHTTPAdapter) mutate(ctx context.Context, productID int64, action string, quantity int) error {
	base, err := a.resolve(ctx)
	if err != nil {
		return err
	}
	if err := a.client.PostJSON(ctx, productURL(base, productID, action), stockRequest{Quantity: quantity}, nil); err != nil {
		return translate(err)
	}
	return nil
}

func productURL(base string, productID int64, action string) string {
	return fmt.Sprintf("%s/inventory/products/%d/%s", base, productID, action)
}

// translate 把远端的错误码还原成领域错误，调用方可以继续用 errors.Is 判断
func translate(err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		if domainErr, ok := inventoryErrorCodes[statusErr.Code]; ok {
			return fmt.Errorf("%w: %s", domainErr, statusErr.Message)
		}
	}
	return err
}

// URLResolver 是 *nacos.Client 的服务发现能力
type URLResolver interface {
	ResolveURL(serviceName string) (string, error)
}

// NacosResolver 每次调用都从注册中心选一个健康实例
func NacosResolver(naming URLResolver, serviceName string) ServiceResolver {
	return func(context.Context) (string, error) { return naming.ResolveURL(serviceName) }
}
