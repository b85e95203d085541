// internal/service/order/infrastructure/mysql.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"stockflow/internal/service/order/domain"
)

// MysqlRepository 是 OrderRepository 的 GORM 实现
type MysqlRepository struct {
	db *gorm.DB
}

func NewMysqlRepository(db *gorm.DB) *MysqlRepository {
	return &MysqlRepository{db: db}
}

// Create 订单和订单行在同一个事务里写入
func (r *MysqlRepository) Create(ctx context.Context, order *domain.Order) error {
	model := FromDomainOrder(order)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("LineItems").Create(model).Error; err != nil {
			return err
		}
		if len(model.LineItems) == 0 {
			return nil
		}
		return tx.Create(&model.LineItems).Error
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "create order %s", order.ID)
	}
	return nil
}

func (r *MysqlRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("LineItems").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find order %s", id)
	}
	return ToDomainOrder(&model), nil
}

// UpdateStatus 是一次 compare-and-set：WHERE 条件里带上旧状态
func (r *MysqlRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": at,
		})
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "update order %s status %s -> %s", id, from, to)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return pkgerrors.Wrapf(err, "check order %s", id)
	}
	if count == 0 {
		return domain.ErrOrderNotFound
	}
	return domain.ErrStaleStatus
}

func (r *MysqlRepository) ListStale(ctx context.Context, status domain.Status, before time.Time, afterID string, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("status = ? AND updated_at < ? AND id > ?", string(status), before, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "list %s orders before %s", status, before.Format(time.RFC3339))
	}
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, ToDomainOrder(&models[i]))
	}
	return orders, nil
}
