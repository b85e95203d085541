// internal/service/payment/infrastructure/rule/cel_policy.go
package rule

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"stockflow/internal/service/payment/domain"
)

// CELPolicy 是 domain.OutcomePolicy 的一个实现：用一条 CEL 布尔表达式决定是否批准支付。
// 表达式可以引用 order.totalPrice、order.totalQuantity、order.memberId 和 lineItems。
type CELPolicy struct {
	expression string
	program    cel.Program
}

// NewCELPolicy 在启动时编译表达式，语法或类型错误直接返回
func NewCELPolicy(expression string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("order", cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable("lineItems", cel.ListType(cel.MapType(cel.StringType, cel.IntType))),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile payment rule %q", expression)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("payment rule %q must evaluate to bool, got %s", expression, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build cel program")
	}
	return &CELPolicy{expression: expression, program: program}, nil
}

// Decide 实现了 domain.OutcomePolicy 接口。
func (p *CELPolicy) Decide(ctx context.Context, req domain.PaymentRequest) (domain.Decision, error) {
	// 1. 把支付请求转换成规则引擎能理解的事实
	lineItems := make([]map[string]int64, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		lineItems = append(lineItems, map[string]int64{
			"productId": li.ProductID,
			"quantity":  int64(li.Quantity),
			"unitPrice": li.UnitPrice,
		})
	}
	facts := map[string]any{
		"order": map[string]int64{
			"totalPrice":    req.TotalPrice,
			"totalQuantity": int64(req.TotalQuantity),
			"memberId":      req.MemberID,
		},
		"lineItems": lineItems,
	}

	// 2. 执行评估
	out, _, err := p.program.ContextEval(ctx, facts)
	if err != nil {
		return domain.Decision{}, errors.Wrapf(err, "evaluate payment rule %q", p.expression)
	}
	approved, ok := out.Value().(bool)
	if !ok {
		return domain.Decision{}, fmt.Errorf("payment rule %q returned %T", p.expression, out.Value())
	}
	if !approved {
		return domain.Decision{Approved: false, Reason: "rejected by rule: " + p.expression}, nil
	}
	return domain.Decision{Approved: true}, nil
}
