package infrastructure

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockflow/internal/service/inventory/domain"
)

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find product %d", id)
	}
	return ToDomainProduct(&model), nil
}

// AdjustStock 用条件更新保证存储中的库存永不为负
func (r *GormProductRepository) AdjustStock(ctx context.Context, id int64, delta int64) error {
	res := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "adjust stock of product %d by %d", id, delta)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// 没有行被更新：要么商品不存在，要么库存不足
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrStockInsufficient
}

func (r *GormProductRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Product, error) {
	var models []ProductModel
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "list products after %d", afterID)
	}
	products := make([]*domain.Product, 0, len(models))
	for i := range models {
		products = append(products, ToDomainProduct(&models[i]))
	}
	return products, nil
}

func (r *GormProductRepository) Save(ctx context.Context, p *domain.Product) error {
	model := FromDomainProduct(p)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price", "stock", "purchase_start_time", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return pkgerrors.Wrapf(err, "save product %d", p.ID)
	}
	return nil
}
