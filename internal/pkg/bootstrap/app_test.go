package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloserStack_RunsInReverseOrderAndContinuesOnError(t *testing.T) {
	var order []string
	s := &closerStack{}
	s.push("db", func(ctx context.Context) error { order = append(order, "db"); return nil })
	s.push("consumer", func(ctx context.Context) error { order = append(order, "consumer"); return errors.New("stuck") })
	s.push("producer", func(ctx context.Context) error { order = append(order, "producer"); return nil })

	s.run(context.Background())

	assert.Equal(t, []string{"producer", "consumer", "db"}, order)
}

func TestGetCurrentConfig_DefaultsBeforeInit(t *testing.T) {
	cfg := GetCurrentConfig()
	assert.NotNil(t, cfg)
	assert.Equal(t, "redis", cfg.Lock.Backend)
}
