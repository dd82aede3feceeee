package schedule

import "time"

// State is the tick driver state.
type State int

const (
	// Idle means no tick source is installed.
	Idle State = iota
	// Starting means installation is deferred to the host.
	Starting
	// Running means a tick source is installed.
	Running
)

func (st State) String() string {
	switch st {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Source names the kind of tick source a Scheduler installs.
type Source string

const (
	SourceFrame    Source = "frame"
	SourceInterval Source = "interval"
)

// Snapshot is a point-in-time view of a Scheduler.
type Snapshot struct {
	State       string        `json:"state"`
	Source      Source        `json:"source"`
	DisplayRate time.Duration `json:"displayRate"`
	Tasks       int           `json:"tasks"`
	Callbacks   int           `json:"callbacks"`
	Paused      int           `json:"paused"`
	Ticks       uint64        `json:"ticks"`
}

// State returns the tick driver state.
func (s *Scheduler) State() State {
	return s.state
}

// Active reports whether a tick source is installed or about to be.
func (s *Scheduler) Active() bool {
	return s.state != Idle
}

// Snapshot returns counters describing the scheduler.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		State:       s.state.String(),
		Source:      s.source(),
		DisplayRate: s.displayRate,
		Tasks:       len(s.tasks),
		Ticks:       s.ticks,
	}
	for _, t := range s.tasks {
		snap.Callbacks += len(t.callbacks)
		for _, cb := range t.callbacks {
			if cb.paused {
				snap.Paused++
			}
		}
	}
	return snap
}

func (s *Scheduler) source() Source {
	if s.frames != nil {
		return SourceFrame
	}
	return SourceInterval
}

// activate moves an idle driver to Starting. The tick source itself is
// installed by the host on its next turn.
func (s *Scheduler) activate() {
	if !s.started || s.state != Idle {
		return
	}
	s.state = Starting
	s.log.Debug().Str("source", string(s.source())).Msg("tick driver starting")
	s.host.Defer(s.install)
}

func (s *Scheduler) install() {
	if s.state != Starting {
		return
	}
	s.state = Running
	s.generation++
	s.lastRun = s.clock.Now()

	gen := s.generation
	if s.frames != nil {
		s.cancel = s.frames.RequestFrame(func() { s.onFrame(gen) })
	} else {
		s.cancel = s.intervals.Every(s.displayRate, func() { s.onInterval(gen) })
	}
	s.log.Debug().
		Str("source", string(s.source())).
		Dur("displayRate", s.displayRate).
		Msg("tick driver running")
}

func (s *Scheduler) disable() {
	if s.state == Idle {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = Idle
	s.log.Debug().Uint64("ticks", s.ticks).Msg("tick driver idle")
}

func (s *Scheduler) current(gen uint64) bool {
	return s.state == Running && s.generation == gen
}

func (s *Scheduler) onFrame(gen uint64) {
	if !s.current(gen) {
		return
	}
	s.tick()
	if s.current(gen) {
		s.cancel = s.frames.RequestFrame(func() { s.onFrame(gen) })
	}
}

func (s *Scheduler) onInterval(gen uint64) {
	if !s.current(gen) {
		return
	}
	s.tick()
}

func (s *Scheduler) tick() {
	now := s.clock.Now()
	dt := now - s.lastRun
	if dt < 0 {
		dt = time.Millisecond
	}
	s.lastRun = now
	s.ticks++
	s.dispatch(dt)
}
