package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the read-through collaborator for computed slot listings. It is
// passed in explicitly; mutating operations call Delete or DeletePattern
// synchronously so a stale listing never outlives the write that broke it.
type Cache interface {
	// Remember returns the cached value for key, or runs produce, stores
	// the result for ttl and returns it.
	Remember(ctx context.Context, key string, ttl time.Duration, produce func(context.Context) ([]byte, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern drops every key matching a glob pattern, for writes
	// whose affected dates are unknown (schedule replacement).
	DeletePattern(ctx context.Context, pattern string) error
}

// SlotsKey names the cached slot listing for one consultant and date.
func SlotsKey(consultantID int64, date string) string {
	return fmt.Sprintf("slots:%d:%s", consultantID, date)
}

// SlotsPattern matches every cached listing of one consultant.
func SlotsPattern(consultantID int64) string {
	return fmt.Sprintf("slots:%d:*", consultantID)
}

// Noop caches nothing. Used when Redis is not configured; every read falls
// through to the producer.
type Noop struct{}

func (Noop) Remember(ctx context.Context, _ string, _ time.Duration, produce func(context.Context) ([]byte, error)) ([]byte, error) {
	return produce(ctx)
}

func (Noop) Delete(context.Context, ...string) error { return nil }

func (Noop) DeletePattern(context.Context, string) error { return nil }
