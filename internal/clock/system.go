package clock

import (
	"context"
	"time"
)

// SystemClock returns the system time in UTC.
type SystemClock struct{}

func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

func (c *SystemClock) Now(_ context.Context) time.Time {
	return time.Now().UTC()
}
