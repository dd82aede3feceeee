package schedule

import "time"

// Unlimited is the call limit of a task that never runs out.
const Unlimited = -1

// Func is a scheduled unit of work. It receives the time elapsed since it
// last fired, or since it was scheduled.
type Func func(dt time.Duration)

// ID identifies one registration.
type ID uint64

type callback struct {
	id          ID
	fn          Func
	owner       any
	paused      bool
	accumulated time.Duration
	removed     bool
}

// A Task groups callbacks that share a firing rate and a call budget.
//
// Every callback of a task waits at least Rate between invocations. The
// budget is shared: each invocation of any callback consumes one call, and
// once it is spent every callback of the task is unscheduled.
type Task struct {
	rate      time.Duration
	limit     int
	callbacks []*callback
}

// NewTask creates a Task. A limit <= 0 means Unlimited.
func NewTask(rate time.Duration, limit int) *Task {
	t := new(Task)
	if rate < 0 {
		rate = 0
	}
	t.rate = rate
	t.limit = limit
	if limit <= 0 {
		t.limit = Unlimited
	}
	return t
}

// Rate returns the minimum wait between invocations.
func (t *Task) Rate() time.Duration {
	return t.rate
}

// Remaining returns the remaining call budget, or Unlimited.
func (t *Task) Remaining() int {
	return t.limit
}

// Len returns the number of callbacks registered in the task.
func (t *Task) Len() int {
	return len(t.callbacks)
}

func (t *Task) exhausted() bool {
	return t.limit == 0
}

// step runs one tick over the task. Callbacks are visited newest first over
// a snapshot, so anything unscheduled mid-walk is flagged and skipped.
func (t *Task) step(s *Scheduler, dt time.Duration) {
	if len(t.callbacks) == 0 {
		return
	}

	snapshot := append([]*callback(nil), t.callbacks...)
	for i := len(snapshot) - 1; i >= 0; i-- {
		cb := snapshot[i]
		if cb.removed || cb.paused || cb.fn == nil {
			continue
		}
		if t.exhausted() {
			return
		}

		if cb.accumulated > dt {
			cb.accumulated -= dt
			continue
		}

		delta := t.rate + dt - cb.accumulated
		cb.accumulated = t.rate - (dt - cb.accumulated)
		if cb.accumulated < 0 {
			cb.accumulated = 0
		}
		cb.fn(delta)

		if t.limit != Unlimited {
			t.limit--
			if t.limit == 0 {
				s.retire(t)
			}
		}
	}
}
