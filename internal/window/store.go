package window

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached.
var ErrUnavailable = errors.New("window store unavailable")

// Store is a keyed collection of sliding windows.
//
// Implementations must serialize the prune-and-append sequence per key so that
// concurrent callers never lose an entry or admit past a limit.
type Store interface {
	// Add prunes key to the trailing span and appends now. It returns the
	// number of entries after the append.
	Add(ctx context.Context, key string, now time.Time, span time.Duration) (int, error)

	// AddBelow prunes key and appends now only when the pruned count is below
	// limit. It reports whether now was appended and the resulting count.
	AddBelow(ctx context.Context, key string, now time.Time, span time.Duration, limit int) (bool, int, error)

	// Count prunes key and returns the number of entries left.
	Count(ctx context.Context, key string, now time.Time, span time.Duration) (int, error)

	// Clear drops every entry of key.
	Clear(ctx context.Context, key string) error
}
