package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/pkg/config"
	"stockflow/internal/service/payment/application"
	"stockflow/internal/service/payment/infrastructure/rule"
)

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(config.PaymentConfig{Policy: "random", FailureRate: 0.2})
	require.NoError(t, err)
	assert.IsType(t, &application.RandomFailurePolicy{}, p)

	p, err = NewPolicy(config.PaymentConfig{Policy: "approve_all"})
	require.NoError(t, err)
	assert.IsType(t, application.ApproveAllPolicy{}, p)

	p, err = NewPolicy(config.PaymentConfig{Policy: "cel", CELExpression: "order.totalPrice <= 10000"})
	require.NoError(t, err)
	assert.IsType(t, &rule.CELPolicy{}, p)

	_, err = NewPolicy(config.PaymentConfig{Policy: "cel", CELExpression: "order.totalPrice +"})
	assert.Error(t, err)

	_, err = NewPolicy(config.PaymentConfig{Policy: "coin"})
	assert.Error(t, err)
}
