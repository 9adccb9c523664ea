package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// etagKey changes whenever the file is rewritten, so stale hashes are never
// served.
func etagKey(path string, size int64, modTime time.Time) string {
	return fmt.Sprintf("media:etag:%s:%d:%d", path, size, modTime.UnixNano())
}

// GetETag returns ("", false, nil) on a cache miss.
func (s *Store) GetETag(ctx context.Context, path string, size int64, modTime time.Time) (string, bool, error) {
	v, err := s.rdb.Get(ctx, etagKey(path, size, modTime)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) SetETag(ctx context.Context, path string, size int64, modTime time.Time, etag string) error {
	return s.rdb.Set(ctx, etagKey(path, size, modTime), etag, s.ttl).Err()
}
