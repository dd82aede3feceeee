package schedule

import "time"

// A Host runs the scheduler's deferred work. Defer must run fn after the
// caller has returned control to the host, never synchronously.
type Host interface {
	Defer(fn func())
}

// A FrameHost calls back once per display refresh. The host decides the
// refresh rate.
type FrameHost interface {
	RequestFrame(fn func()) (cancel func())
}

// An IntervalHost calls back at a fixed period until cancelled.
type IntervalHost interface {
	Every(period time.Duration, fn func()) (cancel func())
}

// A Clock reports monotonic time relative to an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// GroupMember is implemented by callback owners that belong to a pause
// group, see Scheduler.SetGroupPaused.
type GroupMember interface {
	MemberOf(group any) bool
}

type monotonicClock struct {
	origin time.Time
}

// NewMonotonicClock creates a Clock backed by the runtime's monotonic time.
func NewMonotonicClock() Clock {
	return &monotonicClock{origin: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.origin)
}
