// Package retry implements the bounded fixed-delay policy used while
// connecting to upstreams (broker, database) at service start. It is not
// meant for request-path retries.
package retry

import (
	"context"
	"fmt"
	"time"
)

type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Do runs fn up to p.Attempts times, sleeping p.Delay between failures.
// The last error is returned once attempts are exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < p.Attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == p.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return fmt.Errorf("retry: %d attempts exhausted: %w", p.Attempts, err)
}
