package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// sweeper runs expire on a ticker until stopped.
type sweeper struct {
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func startSweeper(interval time.Duration, logger *slog.Logger, expire func(ctx context.Context) (int, error)) *sweeper {
	sw := &sweeper{stop: make(chan struct{})}
	if interval <= 0 {
		return sw
	}

	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				n, err := expire(ctx)
				cancel()
				if err != nil {
					logger.Error("expire reservations failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("expired reservations", "count", n)
				}
			case <-sw.stop:
				return
			}
		}
	}()
	return sw
}

func (sw *sweeper) Stop() {
	sw.once.Do(func() { close(sw.stop) })
	sw.wg.Wait()
}
