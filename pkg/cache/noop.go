package cache

import (
	"context"
	"time"
)

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) SetIfNewer(context.Context, string, int64, []byte, time.Duration) (bool, error) {
	return false, nil
}

func (Noop) InvalidatePrefix(context.Context, string) error { return nil }
