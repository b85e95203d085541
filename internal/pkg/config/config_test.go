package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, "sync", cfg.Order.PaymentMode)
	assert.InDelta(t, 0.2, cfg.Payment.FailureRate, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Payment.StallTimeout)
}

func TestLoad_ParsesYAMLDurations(t *testing.T) {
	path := writeConfig(t, `
lock:
  backend: zookeeper
  wait_time: 250ms
  lease_time: 2s
order:
  payment_mode: event
  reconciler:
    chunk_size: 10
    pending_timeout: 15m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "zookeeper", cfg.Lock.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Lock.WaitTime)
	assert.Equal(t, 2*time.Second, cfg.Lock.LeaseTime)
	assert.Equal(t, "event", cfg.Order.PaymentMode)
	assert.Equal(t, 10, cfg.Order.Reconciler.ChunkSize)
	assert.Equal(t, 15*time.Minute, cfg.Order.Reconciler.PendingTimeout)
	// 未出现在文件中的字段保持默认值
	assert.Equal(t, 24*time.Hour, cfg.Order.Reconciler.ShippingAfter)
}

func TestLoad_EnvOverridesInfra(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("REDIS_ADDRS", "r1:6379")

	cfg, err := Load(writeConfig(t, "infra:\n  kafka:\n    brokers: [file:9092]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, []string{"r1:6379"}, cfg.Infra.Redis.Addrs)
}

func TestLoad_RejectsUnknownModes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"lock backend", "lock:\n  backend: etcd\n"},
		{"payment mode", "order:\n  payment_mode: carrier-pigeon\n"},
		{"failure rate", "payment:\n  failure_rate: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
