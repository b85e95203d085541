// internal/service/order/infrastructure/adapter/collaborator_http_adapter.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"stockflow/internal/pkg/httpclient"
	"stockflow/internal/service/order/domain"
)

// CartHTTPAdapter 通知购物车服务移除已下单的商品
type CartHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewCartHTTPAdapter(client *httpclient.Client, baseURL string) *CartHTTPAdapter {
	return &CartHTTPAdapter{client: client, baseURL: baseURL}
}

type removeCartItemsRequest struct {
	ProductIDs []int64 `json:"productIds"`
}

func (a *CartHTTPAdapter) RemoveItems(ctx context.Context, memberID int64, productIDs []int64) error {
	url := fmt.Sprintf("%s/carts/%d/items", a.baseURL, memberID)
	return a.client.Do(ctx, http.MethodDelete, url, removeCartItemsRequest{ProductIDs: productIDs}, nil)
}

// MemberHTTPAdapter 通过会员服务确认会员存在
type MemberHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewMemberHTTPAdapter(client *httpclient.Client, baseURL string) *MemberHTTPAdapter {
	return &MemberHTTPAdapter{client: client, baseURL: baseURL}
}

func (a *MemberHTTPAdapter) Exists(ctx context.Context, memberID int64) error {
	err := a.client.Get(ctx, fmt.Sprintf("%s/members/%d", a.baseURL, memberID), nil, nil)
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %d", domain.ErrMemberNotFound, memberID)
	}
	return err
}
