package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/eringen/viewcounter/internal/logger"
)

const (
	redisKeyPrefix     = Namespace + ":"
	redisChangeChannel = Namespace + ":changes"
	redisMGetBatch     = 200
)

// RedisStore keeps each counter under "views:<slug>" and announces new
// totals on a pub/sub channel so subscribers get pushed updates.
type RedisStore struct {
	rdb *goredis.Client
	log *logger.Logger
}

type redisChange struct {
	Slug  string `json:"slug"`
	Total int64  `json:"total"`
}

// NewRedisStore connects to addr and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts *goredis.Options, log *logger.Logger) (*RedisStore, error) {
	if opts == nil || strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("%w: redis address", ErrMissingCredentials)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("counter: redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, log: log.With("service", "RedisCounterStore")}, nil
}

// Increment relies on INCR, which is atomic on the server. The change
// announcement is best effort: a failed PUBLISH is logged, not returned,
// because the increment itself already happened.
func (s *RedisStore) Increment(ctx context.Context, slug string) (int64, error) {
	n, err := s.rdb.Incr(ctx, redisKeyPrefix+slug).Result()
	if err != nil {
		return 0, fmt.Errorf("counter: redis incr: %w", err)
	}
	raw, err := json.Marshal(redisChange{Slug: slug, Total: n})
	if err == nil {
		err = s.rdb.Publish(ctx, redisChangeChannel, raw).Err()
	}
	if err != nil {
		s.log.Warn("publish view change failed", "slug", slug, "error", err)
	}
	return n, nil
}

func (s *RedisStore) Get(ctx context.Context, slug string) (int64, error) {
	n, err := s.rdb.Get(ctx, redisKeyPrefix+slug).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter: redis get: %w", err)
	}
	return n, nil
}

func (s *RedisStore) List(ctx context.Context) ([]PageViews, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("counter: redis scan: %w", err)
	}

	pages := make([]PageViews, 0, len(keys))
	for start := 0; start < len(keys); start += redisMGetBatch {
		end := start + redisMGetBatch
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		vals, err := s.rdb.MGet(ctx, batch...).Result()
		if err != nil {
			return nil, fmt.Errorf("counter: redis mget: %w", err)
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				// deleted between SCAN and MGET
				continue
			}
			var n int64
			if _, err := fmt.Sscan(str, &n); err != nil {
				s.log.Warn("skipping non-numeric view counter", "key", batch[i], "error", err)
				continue
			}
			pages = append(pages, PageViews{Slug: strings.TrimPrefix(batch[i], redisKeyPrefix), Views: n})
		}
	}
	return pages, nil
}

// Subscribe listens on the change channel and filters for slug.
func (s *RedisStore) Subscribe(ctx context.Context, slug string) (<-chan int64, error) {
	sub := s.rdb.Subscribe(ctx, redisChangeChannel)
	// ensures the subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("counter: redis subscribe: %w", err)
	}

	out := make(chan int64, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok || m == nil {
					return
				}
				var change redisChange
				if err := json.Unmarshal([]byte(m.Payload), &change); err != nil {
					s.log.Warn("bad view change payload", "error", err)
					continue
				}
				if change.Slug == slug {
					offer(out, change.Total)
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
