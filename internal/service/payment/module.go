// internal/service/payment/module.go
// Package payment 组装支付处理器。支付服务和同步支付模式下的订单服务共用。
package payment

import (
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"stockflow/internal/pkg/config"
	"stockflow/internal/service/payment/application"
	"stockflow/internal/service/payment/domain"
	"stockflow/internal/service/payment/infrastructure"
	"stockflow/internal/service/payment/infrastructure/rule"
)

var Models = []any{&infrastructure.PaymentModel{}}

// NewPolicy 按配置返回支付结果策略
func NewPolicy(cfg config.PaymentConfig) (domain.OutcomePolicy, error) {
	switch cfg.Policy {
	case "", "random":
		return application.NewRandomFailurePolicy(cfg.FailureRate, time.Now().UnixNano())
	case "cel":
		return rule.NewCELPolicy(cfg.CELExpression)
	case "approve_all":
		return application.ApproveAllPolicy{}, nil
	default:
		return nil, errors.Errorf("unknown payment policy %q", cfg.Policy)
	}
}

// NewProcessor 组装一个基于 MySQL 的支付处理器
func NewProcessor(cfg config.PaymentConfig, db *gorm.DB, tracer trace.Tracer) (*application.Processor, error) {
	policy, err := NewPolicy(cfg)
	if err != nil {
		return nil, err
	}
	return application.NewProcessor(infrastructure.NewGormPaymentRepository(db), policy, tracer,
		application.WithStallTimeout(cfg.StallTimeout)), nil
}
