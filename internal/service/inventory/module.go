// internal/service/inventory/module.go
// Package inventory 组装库存服务：Redis 缓存、分布式锁和 MySQL 存储。
// 库存服务和本地模式下的订单服务、对账任务共用这里的组装逻辑。
package inventory

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"stockflow/internal/pkg/config"
	"stockflow/internal/pkg/lock"
	"stockflow/internal/pkg/redis"
	"stockflow/internal/pkg/zookeeper"
	"stockflow/internal/service/inventory/application"
	"stockflow/internal/service/inventory/infrastructure"
)

// Models 是库存服务需要迁移的表
var Models = []any{&infrastructure.ProductModel{}}

// Module 持有组装好的库存服务及其底层连接
type Module struct {
	Service *application.InventoryService

	redis *redis.Client
	zk    *zookeeper.Conn
}

// NewModule 按配置选择锁实现并组装库存服务
func NewModule(cfg *config.Config, db *gorm.DB, tracer trace.Tracer) (*Module, error) {
	client, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		return nil, err
	}
	m := &Module{redis: client}

	cache, err := infrastructure.NewRedisStockCache(client)
	if err != nil {
		m.close()
		return nil, err
	}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "zookeeper":
		m.zk, err = zookeeper.Connect(cfg.Infra.ZooKeeper.Servers, cfg.Infra.ZooKeeper.SessionTimeout)
		if err != nil {
			m.close()
			return nil, err
		}
		locker, err = zookeeper.NewLocker(m.zk)
	default:
		locker, err = lock.NewRedisLocker(client)
	}
	if err != nil {
		m.close()
		return nil, err
	}

	m.Service = application.NewInventoryService(
		infrastructure.NewGormProductRepository(db),
		cache,
		locker,
		lock.Options{WaitTime: cfg.Lock.WaitTime, LeaseTime: cfg.Lock.LeaseTime},
		tracer,
		application.WithStoreWriteTimeout(cfg.Inventory.StoreWriteTimeout),
		// 订单服务本地模式、库存服务和对账任务都在写同一份缓存
		application.WithSettleWindow(settleWindow(cfg.Inventory.StoreWriteTimeout)),
	)
	return m, nil
}

// settleWindow 覆盖其他进程一次异步写入的最长在途时间
func settleWindow(storeWriteTimeout time.Duration) time.Duration {
	if storeWriteTimeout <= 0 {
		return application.DefaultStoreWriteTimeout
	}
	return storeWriteTimeout
}

// Close 等待在途的存储写入后关闭连接
func (m *Module) Close(ctx context.Context) error {
	err := m.Service.Drain(ctx)
	m.close()
	return err
}

func (m *Module) close() {
	if m.zk != nil {
		m.zk.Close()
	}
	_ = m.redis.Close()
}
