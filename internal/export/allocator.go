package export

import (
	"context"
	"fmt"
	"sync"
)

// MaxIDSource reports the largest checkpoint id already stored for a system.
type MaxIDSource interface {
	MaxCheckpointID(ctx context.Context, system string) (int64, error)
}

// IDAllocator hands out checkpoint ids per system. The store is asked for
// the current maximum once per system; later ids come from memory.
//
// Ids are only unique while a single allocator writes checkpoints for a
// system. Running two exporters against the same system needs an external
// lock (see package lock).
type IDAllocator struct {
	src MaxIDSource

	mu   sync.Mutex
	last map[string]int64
}

// NewIDAllocator returns an allocator with an empty cache.
func NewIDAllocator(src MaxIDSource) *IDAllocator {
	return &IDAllocator{
		src:  src,
		last: make(map[string]int64),
	}
}

// Next returns the next id for system. On a lookup error nothing is cached,
// so a later call retries the lookup.
func (a *IDAllocator) Next(ctx context.Context, system string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	last, ok := a.last[system]
	if !ok {
		max, err := a.src.MaxCheckpointID(ctx, system)
		if err != nil {
			return 0, fmt.Errorf("failed to look up last checkpoint id for %q: %w", system, err)
		}
		last = max
	}

	last++
	a.last[system] = last
	return last, nil
}
