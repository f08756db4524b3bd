package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "couponwatch/pkg/logx"

	redis "github.com/redis/go-redis/v9"
)

const redisDialTimeout = 5 * time.Second

// redisStore keeps the links in a Redis list, oldest at the head.
type redisStore struct {
	client *redis.Client
	key    string
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Backend, error) {
	raw := strings.TrimSpace(cfg.RedisURL)
	if raw == "" {
		return nil, errors.New("redis url is required for redis driver")
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = redisDialTimeout
	}
	key := strings.TrimSpace(cfg.RedisKey)
	if key == "" {
		return nil, errors.New("redis key is required for redis driver")
	}
	log.Debug("redis store", logx.URL("url", raw), logx.String("key", key))
	return newRedisStore(redis.NewClient(opts), key, log), nil
}

func newRedisStore(client *redis.Client, key string, log logx.Logger) *redisStore {
	return &redisStore{client: client, key: key, log: log}
}

func (s *redisStore) Load(ctx context.Context) ([]string, error) {
	links, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", s.key, err)
	}
	if links == nil {
		links = []string{}
	}
	return links, nil
}

// Save rewrites the list atomically (MULTI/EXEC).
func (s *redisStore) Save(ctx context.Context, links []string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(links) == 0 {
			return nil
		}
		vals := make([]any, len(links))
		for i, l := range links {
			vals[i] = l
		}
		pipe.RPush(ctx, s.key, vals...)
		pipe.LTrim(ctx, s.key, int64(-len(links)), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", s.key, err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
