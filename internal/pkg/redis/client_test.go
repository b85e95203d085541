package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func TestRunScript_ExecutesRegisteredScript(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set("counter", "41"))
	require.NoError(t, c.LoadScriptFromContent("incr", `return redis.call('incr', KEYS[1])`))

	res, err := c.RunScript(context.Background(), "incr", []string{"counter"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res)
}

func TestRunScript_UnknownScript(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.RunScript(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestLoadScriptFromContent_RejectsEmpty(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Error(t, c.LoadScriptFromContent("", "return 1"))
	assert.Error(t, c.LoadScriptFromContent("x", ""))
}
