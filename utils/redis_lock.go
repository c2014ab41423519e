package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	// 为原生Redis客户端添加别名，解决命名冲突
	goredis "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"

	// 为redsync的redis接口包添加别名，避免冲突
	goredisadapter "github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"go.uber.org/zap"
)

// RedisClient 全局Redis客户端
var RedisClient *goredis.Client

// Redisync 全局RedSync实例（用于RedLock分布式锁）
var Redisync *redsync.Redsync

// InitRedis 初始化Redis客户端与RedSync
func InitRedis(addr, password string, db int) error {
	RedisClient = goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	if err := RedisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	adapterPool := goredisadapter.NewPool(RedisClient)
	Redisync = redsync.New(adapterPool)
	return nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() {
	if RedisClient != nil {
		RedisClient.Close()
	}
}

// GetRedisLock 获取RedSync分布式锁
func GetRedisLock(ctx context.Context, key string, expire time.Duration) (*redsync.Mutex, error) {
	if Redisync == nil {
		return nil, errors.New("redsync not initialized")
	}

	mutex := Redisync.NewMutex(key, redsync.WithExpiry(expire))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("redsync lock failed: %w", err)
	}
	return mutex, nil
}

// ReleaseRedisLock 释放RedSync分布式锁
func ReleaseRedisLock(mutex *redsync.Mutex) error {
	if mutex == nil {
		return errors.New("mutex is nil")
	}

	ok, err := mutex.Unlock()
	if err != nil {
		return fmt.Errorf("redsync unlock failed: %w", err)
	}
	if !ok {
		return errors.New("mutex has expired or not held")
	}
	return nil
}

// RedisMutexLocker 基于RedSync的拍卖操作锁，多实例部署时串行化同一拍卖的写操作
// 持有期间每隔Expiry/3续期一次，结算耗时超过Expiry也不会丢锁
type RedisMutexLocker struct {
	Expiry time.Duration
}

// Lock 加锁并返回解锁函数
func (l RedisMutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	expiry := l.Expiry
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	mutex, err := GetRedisLock(ctx, key, expiry)
	if err != nil {
		return nil, err
	}

	stopKeepAlive := keepAlive(expiry/3, func() error {
		extendCtx, cancel := context.WithTimeout(context.Background(), expiry/3)
		defer cancel()
		ok, err := mutex.ExtendContext(extendCtx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("mutex no longer held")
		}
		return nil
	}, func(err error) {
		Logger.Warn("分布式锁续期失败", zap.String("key", key), zap.Error(err))
	})

	return func() {
		stopKeepAlive()
		if err := ReleaseRedisLock(mutex); err != nil {
			Logger.Warn("释放分布式锁失败", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// keepAlive 每隔interval调用一次extend，返回的stop函数会等待后台协程退出
func keepAlive(interval time.Duration, extend func() error, onError func(error)) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := extend(); err != nil {
					onError(err)
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

// ClaimOnce 原子占用key（SETNX），已被占用返回false
func ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if RedisClient == nil {
		return false, errors.New("redis client not initialized")
	}
	ok, err := RedisClient.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseClaim 释放ClaimOnce占用的key
func ReleaseClaim(ctx context.Context, key string) error {
	if RedisClient == nil {
		return errors.New("redis client not initialized")
	}
	return RedisClient.Del(ctx, key).Err()
}
