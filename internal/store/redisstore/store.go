package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store wraps the shared redis client. It implements summary.Cache:
// operations are best-effort, redis being down degrades to DB reads.
type Store struct {
	rdb *redis.Client
	log zerolog.Logger
}

func New(addr, password string, db int, log zerolog.Logger) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb, log: log}
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return "", false
	}
	return v, true
}

func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
