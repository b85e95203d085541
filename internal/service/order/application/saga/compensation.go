// internal/service/order/application/saga/compensation.go
package saga

import (
	"context"
	"errors"
	"sync"

	"stockflow/internal/pkg/logger"
)

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// Compensations 是一个 LIFO 的补偿栈：每完成一个步骤就压入它的补偿动作，
// 失败时按相反顺序全部执行。
type Compensations struct {
	mu    sync.Mutex
	steps []compensation
}

func (c *Compensations) Add(name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, compensation{name: name, fn: fn})
}

func (c *Compensations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.steps)
}

// Run 逆序执行所有补偿。单个补偿失败不会中断其余补偿，所有错误合并返回。
// 执行后栈被清空，重复调用不会重复补偿。
func (c *Compensations) Run(ctx context.Context) error {
	c.mu.Lock()
	steps := c.steps
	c.steps = nil
	c.mu.Unlock()

	log := logger.Ctx(ctx)
	log.Info().Int("count", len(steps)).Msg("executing compensations")

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.fn(ctx); err != nil {
			log.Error().Err(err).Str("step", step.name).Msg("CRITICAL: compensation failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
