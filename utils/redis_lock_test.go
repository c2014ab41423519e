package utils

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeepAlive(t *testing.T) {
	var extends, failures atomic.Int32
	stop := keepAlive(5*time.Millisecond, func() error {
		if extends.Add(1)%2 == 0 {
			return errors.New("extend failed")
		}
		return nil
	}, func(error) {
		failures.Add(1)
	})

	require.Eventually(t, func() bool { return extends.Load() >= 4 }, 2*time.Second, time.Millisecond)
	stop()
	afterStop := extends.Load()
	assert.GreaterOrEqual(t, failures.Load(), int32(2))

	// 停止后不再续期，重复调用stop不阻塞
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, afterStop, extends.Load())
	stop()
}

func TestRedisMutexLocker_NotInitialized(t *testing.T) {
	saved := Redisync
	Redisync = nil
	defer func() { Redisync = saved }()

	_, err := RedisMutexLocker{Expiry: time.Second}.Lock(t.Context(), "nft_auction:lock:x")
	require.Error(t, err)
}
