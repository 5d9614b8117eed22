package counter

import (
	"context"
	"time"

	"github.com/eringen/viewcounter/internal/logger"
)

// DefaultPollInterval is used by backends without a native change feed.
const DefaultPollInterval = 2 * time.Second

// pollSubscribe emulates a change feed by re-reading the counter every
// interval and forwarding totals that differ from the last one seen.
func pollSubscribe(ctx context.Context, log *logger.Logger, interval time.Duration, slug string, get func(context.Context, string) (int64, error)) (<-chan int64, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	last, err := get(ctx, slug)
	if err != nil {
		return nil, err
	}
	ch := make(chan int64, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := get(ctx, slug)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn("poll view counter failed", "slug", slug, "error", err)
					continue
				}
				if n != last {
					last = n
					offer(ch, n)
				}
			}
		}
	}()
	return ch, nil
}
