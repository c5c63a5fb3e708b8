package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "liqbot:lock:signer:0xabc", lockKey("signer:0xabc"))
}

func TestPayloadBytes(t *testing.T) {
	b, ok := payloadBytes("hello")
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), b)

	b, ok = payloadBytes([]byte{1, 2})
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, b)

	_, ok = payloadBytes(42)
	assert.False(t, ok)
}

func TestClientOptions(t *testing.T) {
	opts := ClientConfig{Addr: "cache:6379", DB: 2, PoolSize: 10}.options()
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Nil(t, opts.TLSConfig)

	opts = ClientConfig{Addr: "cache:6380", TLSEnabled: true}.options()
	assert.NotNil(t, opts.TLSConfig)
}
