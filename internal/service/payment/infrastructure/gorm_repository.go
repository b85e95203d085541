// internal/service/payment/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"stockflow/internal/pkg/database"
	"stockflow/internal/service/payment/domain"
)

// GormPaymentRepository 是 PaymentRepository 的 GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	var model PaymentModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find payment of order %s", orderID)
	}
	return toDomainPayment(&model), nil
}

func (r *GormPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	err := r.db.WithContext(ctx).Create(fromDomainPayment(p)).Error
	if database.IsDuplicateKey(err) {
		return domain.ErrDuplicatePayment
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "create payment for order %s", p.OrderID)
	}
	return nil
}

func (r *GormPaymentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"reason":     reason,
			"updated_at": at,
		})
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "update payment %s to %s", id, to)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Wrapf(domain.ErrStalePayment, "payment %s is no longer %s", id, from)
	}
	return nil
}

func toDomainPayment(m *PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:        m.ID,
		OrderID:   m.OrderID,
		MemberID:  m.MemberID,
		Amount:    m.Amount,
		Status:    domain.Status(m.Status),
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainPayment(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:        p.ID,
		OrderID:   p.OrderID,
		MemberID:  p.MemberID,
		Amount:    p.Amount,
		Status:    string(p.Status),
		Reason:    p.Reason,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
