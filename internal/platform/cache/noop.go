package cache

import (
	"context"
	"time"
)

// Noop is used when no cache is configured. Every Get misses.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(context.Context, string) (string, error) { return "", ErrMiss }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Noop) Incr(context.Context, string) (int64, error) { return 0, nil }
func (Noop) Close() error { return nil }
