package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsTerminal(t *testing.T) {
	terminal := []Status{StatusPaymentFailed, StatusOrderConfirmed, StatusCancelled, StatusReturnCompleted}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), s)
		for _, to := range []Status{StatusPaymentCompleted, StatusShipping, StatusCancelled} {
			assert.False(t, s.CanTransition(to), "%s -> %s", s, to)
		}
	}

	live := []Status{StatusPaymentPending, StatusPaymentCompleted, StatusShipping, StatusDelivered, StatusReturnRequested}
	for _, s := range live {
		assert.False(t, s.IsTerminal(), s)
	}
}
