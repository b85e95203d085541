// internal/service/inventory/infrastructure/redis_stock_cache.go
package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"stockflow/internal/pkg/redis"
	"stockflow/internal/service/inventory/domain"
)

const (
	setIfAbsentScriptName  = "stock_set_if_absent"
	incrIfExistsScriptName = "stock_incr_if_exists"
)

// KEYS[1]: 目标 key  ARGV[1]: 初始值
// 不存在时写入，返回缓存中最终的值
var setIfAbsentScript = `
if redis.call('setnx', KEYS[1], ARGV[1]) == 1 then
    return ARGV[1]
end
return redis.call('get', KEYS[1])
`

// KEYS[1]: 库存 key  ARGV[1]: 增量(可为负)
// key 不存在时返回 nil，避免 INCRBY 从 0 开始计数
var incrIfExistsScript = `
if redis.call('exists', KEYS[1]) == 0 then
    return false
end
return redis.call('incrby', KEYS[1], ARGV[1])
`

// StockKey 返回库存 key，值为整数字符串
func StockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// PurchaseStartKey 返回开售时间 key，值为 ISO-8601 时间字符串
func PurchaseStartKey(productID int64) string {
	return fmt.Sprintf("purchase-start:%d", productID)
}

// RedisStockCache 是 domain.StockCache 的 Redis 实现，所有 key 都不设置过期时间
type RedisStockCache struct {
	client *redis.Client
}

func NewRedisStockCache(client *redis.Client) (*RedisStockCache, error) {
	if err := client.LoadScriptFromContent(setIfAbsentScriptName, setIfAbsentScript); err != nil {
		return nil, fmt.Errorf("failed to load stock script: %w", err)
	}
	if err := client.LoadScriptFromContent(incrIfExistsScriptName, incrIfExistsScript); err != nil {
		return nil, fmt.Errorf("failed to load stock script: %w", err)
	}
	return &RedisStockCache{client: client}, nil
}

func (c *RedisStockCache) GetStock(ctx context.Context, productID int64) (int64, error) {
	v, err := c.client.GetClient().Get(ctx, StockKey(productID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, domain.ErrCacheMiss
	}
	if err != nil {
		return 0, errors.Wrapf(err, "get stock of product %d", productID)
	}
	return v, nil
}

func (c *RedisStockCache) SetStockIfAbsent(ctx context.Context, productID int64, stock int64) (int64, error) {
	res, err := c.client.RunScript(ctx, setIfAbsentScriptName, []string{StockKey(productID)}, stock)
	if err != nil {
		return 0, errors.Wrapf(err, "populate stock of product %d", productID)
	}
	s, ok := res.(string)
	if !ok {
		return 0, errors.Errorf("unexpected result type from stock script: %T", res)
	}
	return strconv.ParseInt(s, 10, 64)
}

func (c *RedisStockCache) SetStock(ctx context.Context, productID int64, stock int64) error {
	if err := c.client.GetClient().Set(ctx, StockKey(productID), stock, 0).Err(); err != nil {
		return errors.Wrapf(err, "set stock of product %d", productID)
	}
	return nil
}

func (c *RedisStockCache) IncrBy(ctx context.Context, productID int64, delta int64) (int64, error) {
	res, err := c.client.RunScript(ctx, incrIfExistsScriptName, []string{StockKey(productID)}, delta)
	if errors.Is(err, goredis.Nil) {
		return 0, domain.ErrCacheMiss
	}
	if err != nil {
		return 0, errors.Wrapf(err, "incr stock of product %d", productID)
	}
	v, ok := res.(int64)
	if !ok {
		return 0, errors.Errorf("unexpected result type from stock script: %T", res)
	}
	return v, nil
}

func (c *RedisStockCache) GetPurchaseStart(ctx context.Context, productID int64) (time.Time, error) {
	s, err := c.client.GetClient().Get(ctx, PurchaseStartKey(productID)).Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, domain.ErrCacheMiss
	}
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "get purchase start of product %d", productID)
	}
	return parseTime(s)
}

func (c *RedisStockCache) SetPurchaseStartIfAbsent(ctx context.Context, productID int64, start time.Time) (time.Time, error) {
	res, err := c.client.RunScript(ctx, setIfAbsentScriptName, []string{PurchaseStartKey(productID)}, formatTime(start))
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "populate purchase start of product %d", productID)
	}
	s, ok := res.(string)
	if !ok {
		return time.Time{}, errors.Errorf("unexpected result type from stock script: %T", res)
	}
	return parseTime(s)
}

func (c *RedisStockCache) SetPurchaseStart(ctx context.Context, productID int64, start time.Time) error {
	if err := c.client.GetClient().Set(ctx, PurchaseStartKey(productID), formatTime(start), 0).Err(); err != nil {
		return errors.Wrapf(err, "set purchase start of product %d", productID)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse cached purchase start %q", s)
	}
	return t, nil
}
