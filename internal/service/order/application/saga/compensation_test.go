package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompensations_RunInReverseOrder(t *testing.T) {
	var c Compensations
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		c.Add(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestCompensations_ContinuesAfterFailure(t *testing.T) {
	var c Compensations
	boom := errors.New("boom")
	ran := 0
	c.Add("first", func(context.Context) error { ran++; return nil })
	c.Add("second", func(context.Context) error { ran++; return boom })

	err := c.Run(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ran)
}

func TestCompensations_RunOnlyOnce(t *testing.T) {
	var c Compensations
	ran := 0
	c.Add("only", func(context.Context) error { ran++; return nil })

	_ = c.Run(context.Background())
	_ = c.Run(context.Background())

	assert.Equal(t, 1, ran)
	assert.Zero(t, c.Len())
}
