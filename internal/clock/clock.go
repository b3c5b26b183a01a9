package clock

import (
	"context"
	"time"
)

// Clock provides the current time. Injected everywhere the current period
// or a last-updated timestamp is derived, so tests can pin the calendar.
type Clock interface {
	Now(ctx context.Context) time.Time
}
