// Package paging assembles full logical results from a backend that only
// serves bounded page windows.
package paging

import (
	"context"
	"math"
)

// Unbounded requests every item from the starting offset onward.
const Unbounded = math.MaxInt

// DefaultBufferSize is the per-call page size used when none is configured.
const DefaultBufferSize = 100

// PageFunc fetches one page window: up to max items starting at the logical
// offset first. A short page means the collection is exhausted.
type PageFunc[T any] func(ctx context.Context, first, max int) ([]T, error)

// All fetches items from logical position first up to position limit,
// buffer items per call. Each call requests min(buffer, limit-offset) items;
// the offset advances by buffer per full page so it stays aligned with the
// upstream paging contract. A short page or reaching limit terminates the
// loop. Any fetch failure propagates unchanged and the partial accumulation
// is discarded.
//
// The returned slice is never nil.
func All[T any](ctx context.Context, fetch PageFunc[T], first, limit, buffer int) ([]T, error) {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	out := []T{}
	for offset := first; offset < limit; offset += buffer {
		max := buffer
		if rem := limit - offset; rem < max {
			max = rem
		}
		page, err := fetch(ctx, offset, max)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < max {
			break
		}
	}
	return out, nil
}
