package infrastructure

import "stockflow/internal/service/inventory/domain"

// ToDomainProduct 将数据库模型转换为领域模型
func ToDomainProduct(m *ProductModel) *domain.Product {
	if m == nil {
		return nil
	}
	return &domain.Product{
		ID:                m.ID,
		Name:              m.Name,
		Price:             m.Price,
		Stock:             m.Stock,
		PurchaseStartTime: m.PurchaseStartTime,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomainProduct 将领域模型转换为数据库模型
func FromDomainProduct(p *domain.Product) *ProductModel {
	if p == nil {
		return nil
	}
	return &ProductModel{
		ID:                p.ID,
		Name:              p.Name,
		Price:             p.Price,
		Stock:             p.Stock,
		PurchaseStartTime: p.PurchaseStartTime,
	}
}
