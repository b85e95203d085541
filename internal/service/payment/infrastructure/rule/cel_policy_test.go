package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/service/payment/domain"
)

func TestCELPolicy_Decide(t *testing.T) {
	policy, err := NewCELPolicy("order.totalPrice <= 10000 && lineItems.all(li, li.quantity <= 3)")
	require.NoError(t, err)

	small := domain.PaymentRequest{
		OrderID:    "o1",
		TotalPrice: 3000,
		LineItems:  []domain.LineItem{{ProductID: 1, Quantity: 2, UnitPrice: 1500}},
	}
	d, err := policy.Decide(context.Background(), small)
	require.NoError(t, err)
	assert.True(t, d.Approved)

	bulky := small
	bulky.LineItems = []domain.LineItem{{ProductID: 1, Quantity: 4, UnitPrice: 500}}
	d, err = policy.Decide(context.Background(), bulky)
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "rejected by rule")

	expensive := small
	expensive.TotalPrice = 20000
	d, err = policy.Decide(context.Background(), expensive)
	require.NoError(t, err)
	assert.False(t, d.Approved)
}

func TestNewCELPolicy_RejectsBadExpressions(t *testing.T) {
	_, err := NewCELPolicy("order.totalPrice <=")
	assert.Error(t, err)

	_, err = NewCELPolicy("order.totalPrice + 1")
	assert.Error(t, err, "non-boolean rules are rejected at startup")
}
