package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"medvision/internal/domain/port"
)

const cacheKeyPrefix = "medvision:result:"

// RedisCache хранит готовые ответы в Redis.
type RedisCache struct {
	client *redis.Client
}

var _ port.ResultCache = (*RedisCache)(nil)

// NewRedisCache подключается к Redis. Недоступный сервер не мешает запуску,
// ошибки проявятся при обращении к кэшу.
func NewRedisCache(addr, password string, db int, log logrus.FieldLogger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithField("addr", addr).WithError(err).Warn("redis is not reachable")
	} else {
		log.WithField("addr", addr).Info("connected to redis")
	}

	return &RedisCache{client: client}
}

// Get возвращает сохранённый ответ; промах не считается ошибкой.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set сохраняет ответ на ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, cacheKeyPrefix+key, value, ttl).Err()
}

// Close закрывает соединения с Redis.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
