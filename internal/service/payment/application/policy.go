// internal/service/payment/application/policy.go
package application

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"stockflow/internal/service/payment/domain"
)

const DefaultFailureRate = 0.2

// RandomFailurePolicy 按固定比例随机拒绝支付，用来模拟支付网关的拒付。
// 比例是配置项，不代表任何业务规则。
type RandomFailurePolicy struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	rate float64
}

func NewRandomFailurePolicy(rate float64, seed int64) (*RandomFailurePolicy, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("failure rate must be within [0,1], got %v", rate)
	}
	return &RandomFailurePolicy{rnd: rand.New(rand.NewSource(seed)), rate: rate}, nil
}

func (p *RandomFailurePolicy) Decide(_ context.Context, _ domain.PaymentRequest) (domain.Decision, error) {
	p.mu.Lock()
	roll := p.rnd.Float64()
	p.mu.Unlock()

	if roll < p.rate {
		return domain.Decision{Approved: false, Reason: "declined by payment gateway"}, nil
	}
	return domain.Decision{Approved: true}, nil
}

// ApproveAllPolicy 总是批准
type ApproveAllPolicy struct{}

func (ApproveAllPolicy) Decide(context.Context, domain.PaymentRequest) (domain.Decision, error) {
	return domain.Decision{Approved: true}, nil
}
