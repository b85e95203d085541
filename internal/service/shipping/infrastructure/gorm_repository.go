// internal/service/shipping/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"stockflow/internal/pkg/database"
	"stockflow/internal/service/shipping/domain"
)

var Models = []any{&ShippingModel{}}

// ShippingModel 对应 shipping 表
type ShippingModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	OrderID       string `gorm:"size:36;not null;uniqueIndex"`
	MemberID      int64  `gorm:"not null;index"`
	Address       string `gorm:"size:255"`
	AddressDetail string `gorm:"size:255"`
	Phone         string `gorm:"size:32"`
	CreatedAt     time.Time
}

func (ShippingModel) TableName() string {
	return "shipping"
}

type GormShippingRepository struct {
	db *gorm.DB
}

func NewGormShippingRepository(db *gorm.DB) *GormShippingRepository {
	return &GormShippingRepository{db: db}
}

func (r *GormShippingRepository) Create(ctx context.Context, s *domain.Shipping) error {
	model := ShippingModel{
		ID:            s.ID,
		OrderID:       s.OrderID,
		MemberID:      s.MemberID,
		Address:       s.Address,
		AddressDetail: s.AddressDetail,
		Phone:         s.Phone,
		CreatedAt:     s.CreatedAt,
	}
	err := r.db.WithContext(ctx).Create(&model).Error
	if database.IsDuplicateKey(err) {
		return domain.ErrDuplicateShipping
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "create shipping for order %s", s.OrderID)
	}
	return nil
}

func (r *GormShippingRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Shipping, error) {
	var m ShippingModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShippingNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find shipping of order %s", orderID)
	}
	return &domain.Shipping{
		ID:            m.ID,
		OrderID:       m.OrderID,
		MemberID:      m.MemberID,
		Address:       m.Address,
		AddressDetail: m.AddressDetail,
		Phone:         m.Phone,
		CreatedAt:     m.CreatedAt,
	}, nil
}
