// Package schedule multiplexes periodic and delayed callbacks onto a single
// host tick source.
//
// A Scheduler is not safe for concurrent use. It is meant to live on one
// goroutine, normally the event loop that also implements its Host, and
// every call into it must be made from there. Callbacks may schedule and
// unschedule freely while they run.
//
// Within a tick, tasks are visited newest first with the default task last,
// and the callbacks of a task are visited newest first.
package schedule

import (
	"reflect"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDisplayRate is the interval period used when frames are not
// available.
const DefaultDisplayRate = time.Second / 30

// Scheduler is a unified timer. See the package documentation.
type Scheduler struct {
	host      Host
	frames    FrameHost
	intervals IntervalHost
	clock     Clock
	log       zerolog.Logger

	tasks  []*Task
	nextID ID

	started     bool
	state       State
	generation  uint64
	cancel      func()
	lastRun     time.Duration
	displayRate time.Duration
	ticks       uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock. By default the host's clock is used when
// it implements Clock, otherwise a monotonic clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLogger sets the logger used for driver transitions.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithDisplayRate sets the initial interval period.
func WithDisplayRate(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.displayRate = d
		}
	}
}

// WithAnimationFrame controls whether frames are preferred over intervals.
// Frames are preferred by default.
func WithAnimationFrame(use bool) Option {
	return func(s *Scheduler) {
		if !use {
			s.frames = nil
		}
	}
}

// New creates a stopped Scheduler driven by host. The host must implement
// FrameHost, IntervalHost or both.
func New(host Host, opts ...Option) (*Scheduler, error) {
	if host == nil {
		return nil, ErrNoTickSource
	}

	s := new(Scheduler)
	s.host = host
	s.log = zerolog.Nop()
	s.displayRate = DefaultDisplayRate
	s.frames, _ = host.(FrameHost)
	s.intervals, _ = host.(IntervalHost)
	if c, ok := host.(Clock); ok {
		s.clock = c
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.frames == nil && s.intervals == nil {
		// Intervals were unavailable and frames were opted out of; fall back
		// to frames rather than fail.
		s.frames, _ = host.(FrameHost)
		if s.frames == nil {
			return nil, ErrNoTickSource
		}
	}
	if s.clock == nil {
		s.clock = NewMonotonicClock()
	}

	s.tasks = []*Task{NewTask(0, Unlimited)}
	return s, nil
}

// Start allows the tick driver to run. It activates immediately when
// callbacks are already registered.
func (s *Scheduler) Start() {
	s.started = true
	if s.pending() > 0 {
		s.activate()
	}
}

// Stop cancels the tick source. Registrations are kept and resume on the
// next Start.
func (s *Scheduler) Stop() {
	s.started = false
	s.disable()
}

// Schedule registers fn to run on every tick.
func (s *Scheduler) Schedule(fn Func, owner any) ID {
	return s.ScheduleTask(fn, owner, nil)
}

// ScheduleTask registers fn in task, or in the default task when task is
// nil. The first invocation waits one full task rate.
func (s *Scheduler) ScheduleTask(fn Func, owner any, task *Task) ID {
	if task == nil {
		task = s.tasks[0]
	}

	cb := &callback{
		id:          s.nextID,
		fn:          fn,
		owner:       owner,
		accumulated: task.rate,
	}
	s.nextID++

	task.callbacks = append(task.callbacks, cb)
	if s.taskIndex(task) < 0 {
		s.tasks = append(s.tasks, task)
	}

	s.activate()
	return cb.id
}

// ScheduleWithDelay registers fn to run every delay, at most limit times.
// A limit <= 0 means Unlimited.
func (s *Scheduler) ScheduleWithDelay(fn Func, owner any, delay time.Duration, limit int) ID {
	return s.ScheduleTask(fn, owner, NewTask(delay, limit))
}

// CallAfter registers fn to run once after delay.
func (s *Scheduler) CallAfter(fn Func, owner any, delay time.Duration) ID {
	return s.ScheduleWithDelay(fn, owner, delay, 1)
}

// Unschedule removes the callback registered under id. Unknown ids are
// ignored.
func (s *Scheduler) Unschedule(id ID) {
	s.remove(func(cb *callback) bool {
		return cb.id == id
	})
}

// UnscheduleFunc removes every callback registered with the same fn and
// owner. Functions are matched by code pointer, so two method values of
// the same method, or two closures made from the same function literal,
// are only told apart by their owner. Use Unschedule to remove exactly one
// registration. Owners holding uncomparable values never match.
func (s *Scheduler) UnscheduleFunc(fn Func, owner any) {
	if fn == nil {
		return
	}
	ptr := reflect.ValueOf(fn).Pointer()
	s.remove(func(cb *callback) bool {
		return cb.fn != nil && reflect.ValueOf(cb.fn).Pointer() == ptr && sameOwner(cb.owner, owner)
	})
}

// SetPaused pauses or resumes one callback. It reports whether id was found.
func (s *Scheduler) SetPaused(id ID, paused bool) bool {
	for _, t := range s.tasks {
		for _, cb := range t.callbacks {
			if cb.id == id {
				cb.paused = paused
				return true
			}
		}
	}
	return false
}

// SetGroupPaused pauses or resumes every callback whose owner is a member
// of group, and returns how many callbacks matched.
func (s *Scheduler) SetGroupPaused(group any, paused bool) int {
	n := 0
	for j := len(s.tasks) - 1; j >= 0; j-- {
		callbacks := s.tasks[j].callbacks
		for i := len(callbacks) - 1; i >= 0; i-- {
			member, ok := callbacks[i].owner.(GroupMember)
			if ok && member.MemberOf(group) {
				callbacks[i].paused = paused
				n++
			}
		}
	}
	return n
}

// DisplayRate returns the interval period.
func (s *Scheduler) DisplayRate() time.Duration {
	return s.displayRate
}

// SetDisplayRate changes the interval period. A running interval is torn
// down and reinstalled; frames are unaffected.
func (s *Scheduler) SetDisplayRate(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidRate
	}
	s.displayRate = d
	if s.frames == nil && s.state != Idle {
		s.disable()
		s.activate()
	}
	return nil
}

func (s *Scheduler) remove(match func(*callback) bool) {
	for j := len(s.tasks) - 1; j >= 0; j-- {
		t := s.tasks[j]
		kept := t.callbacks[:0]
		for _, cb := range t.callbacks {
			if match(cb) {
				cb.removed = true
				continue
			}
			kept = append(kept, cb)
		}
		for i := len(kept); i < len(t.callbacks); i++ {
			t.callbacks[i] = nil
		}
		t.callbacks = kept

		if len(t.callbacks) == 0 && j != 0 {
			s.tasks = append(s.tasks[:j], s.tasks[j+1:]...)
		}
	}

	if s.pending() == 0 {
		s.disable()
	}
}

// retire unschedules every callback of an exhausted task.
func (s *Scheduler) retire(t *Task) {
	members := make(map[*callback]bool, len(t.callbacks))
	for _, cb := range t.callbacks {
		members[cb] = true
	}
	s.remove(func(cb *callback) bool {
		return members[cb]
	})
}

func (s *Scheduler) pending() int {
	n := 0
	for _, t := range s.tasks {
		n += len(t.callbacks)
	}
	return n
}

func (s *Scheduler) taskIndex(task *Task) int {
	for i, t := range s.tasks {
		if t == task {
			return i
		}
	}
	return -1
}

func (s *Scheduler) dispatch(dt time.Duration) {
	tasks := append([]*Task(nil), s.tasks...)
	for i := len(tasks) - 1; i >= 0; i-- {
		tasks[i].step(s, dt)
	}
}

func sameOwner(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}
