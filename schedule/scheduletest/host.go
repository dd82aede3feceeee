// Package scheduletest provides a manually driven scheduler host for tests.
package scheduletest

import (
	"sort"
	"time"
)

// Host implements the scheduler host interfaces. Nothing happens until the
// test calls Yield, Frame or Interval.
type Host struct {
	now       time.Duration
	deferred  []func()
	nextID    int
	frames    map[int]func()
	intervals map[int]*interval
}

type interval struct {
	period time.Duration
	fn     func()
}

// NewHost creates a Host at time zero.
func NewHost() *Host {
	return &Host{
		frames:    make(map[int]func()),
		intervals: make(map[int]*interval),
	}
}

// Now returns the host clock.
func (h *Host) Now() time.Duration {
	return h.now
}

// SetNow moves the host clock, backwards if need be.
func (h *Host) SetNow(now time.Duration) {
	h.now = now
}

// Defer queues fn until the next Yield.
func (h *Host) Defer(fn func()) {
	h.deferred = append(h.deferred, fn)
}

// RequestFrame queues fn until the next Frame.
func (h *Host) RequestFrame(fn func()) func() {
	id := h.nextID
	h.nextID++
	h.frames[id] = fn
	return func() { delete(h.frames, id) }
}

// Every registers fn to run on each Interval.
func (h *Host) Every(period time.Duration, fn func()) func() {
	id := h.nextID
	h.nextID++
	h.intervals[id] = &interval{period: period, fn: fn}
	return func() { delete(h.intervals, id) }
}

// Deferred returns the number of queued deferred functions.
func (h *Host) Deferred() int {
	return len(h.deferred)
}

// PendingFrames returns the number of requested frames.
func (h *Host) PendingFrames() int {
	return len(h.frames)
}

// Intervals returns the periods of the installed intervals.
func (h *Host) Intervals() []time.Duration {
	ids := h.sortedIntervals()
	periods := make([]time.Duration, 0, len(ids))
	for _, id := range ids {
		periods = append(periods, h.intervals[id].period)
	}
	return periods
}

// Yield runs deferred functions, including any they defer.
func (h *Host) Yield() {
	for len(h.deferred) > 0 {
		fn := h.deferred[0]
		h.deferred = h.deferred[1:]
		fn()
	}
}

// Frame advances the clock by dt, runs the requested frames, then yields.
func (h *Host) Frame(dt time.Duration) {
	h.now += dt
	batch := h.frames
	h.frames = make(map[int]func())

	ids := make([]int, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		batch[id]()
	}
	h.Yield()
}

// Frames runs n frames of dt each.
func (h *Host) Frames(n int, dt time.Duration) {
	for i := 0; i < n; i++ {
		h.Frame(dt)
	}
}

// Interval advances the clock by dt, fires every interval, then yields.
func (h *Host) Interval(dt time.Duration) {
	h.now += dt
	for _, id := range h.sortedIntervals() {
		if iv, ok := h.intervals[id]; ok {
			iv.fn()
		}
	}
	h.Yield()
}

func (h *Host) sortedIntervals() []int {
	ids := make([]int, 0, len(h.intervals))
	for id := range h.intervals {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
