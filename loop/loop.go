// Package loop runs functions serially on a single goroutine and provides
// the deferred, per-frame and interval callbacks a schedule.Scheduler is
// driven by.
//
// Post and Call are safe from any goroutine. Defer, RequestFrame, Every and
// the cancel functions they return must only be used from functions already
// running on the loop.
package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned when posting to a loop that has stopped.
	ErrClosed = errors.New("loop: closed")

	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("loop: already running")
)

// DefaultRefresh is the frame period: 60Hz.
const DefaultRefresh = time.Second / 60

const ingressSize = 256

// Loop is a single goroutine executor.
type Loop struct {
	refresh time.Duration
	origin  time.Time
	log     zerolog.Logger

	ingress chan func()
	done    chan struct{}
	running atomic.Bool

	// Owned by the loop goroutine.
	deferred   []func()
	nextID     uint64
	frames     map[uint64]func()
	flushing   map[uint64]func()
	frameArmed bool
	frameTimer *time.Timer
	intervals  map[uint64]chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithRefresh sets the frame period.
func WithRefresh(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.refresh = d
		}
	}
}

// WithLogger sets the logger used for recovered panics.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

// New creates a Loop. Nothing runs until Run is called.
func New(opts ...Option) *Loop {
	l := new(Loop)
	l.refresh = DefaultRefresh
	l.origin = time.Now()
	l.log = zerolog.Nop()
	l.ingress = make(chan func(), ingressSize)
	l.done = make(chan struct{})
	l.frames = make(map[uint64]func())
	l.intervals = make(map[uint64]chan struct{})

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Refresh returns the frame period.
func (l *Loop) Refresh() time.Duration {
	return l.refresh
}

// Now returns the monotonic time since the loop was created.
func (l *Loop) Now() time.Duration {
	return time.Since(l.origin)
}

// Run executes posted functions until ctx is done. A loop runs once; after
// Run returns every further Post fails with ErrClosed.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.shutdown()

	for {
		l.drainDeferred()
		select {
		case fn := <-l.ingress:
			l.exec(fn)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Post queues fn to run on the loop.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.ingress <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Defer runs fn once the current function returns to the loop.
func (l *Loop) Defer(fn func()) {
	l.deferred = append(l.deferred, fn)
}

// RequestFrame runs fn once at the next refresh boundary.
func (l *Loop) RequestFrame(fn func()) (cancel func()) {
	id := l.id()
	l.frames[id] = fn
	if !l.frameArmed {
		l.frameArmed = true
		l.frameTimer = time.AfterFunc(l.untilRefresh(), func() {
			select {
			case l.ingress <- l.flushFrames:
			case <-l.done:
			}
		})
	}
	return func() {
		delete(l.frames, id)
		delete(l.flushing, id)
	}
}

// Every runs fn every period until cancelled. Ticks that arrive while the
// loop is saturated are dropped.
func (l *Loop) Every(period time.Duration, fn func()) (cancel func()) {
	id := l.id()
	stop := make(chan struct{})
	l.intervals[id] = stop

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.offer(func() {
					if _, ok := l.intervals[id]; ok {
						fn()
					}
				})
			case <-stop:
				return
			case <-l.done:
				return
			}
		}
	}()

	return func() {
		if stop, ok := l.intervals[id]; ok {
			delete(l.intervals, id)
			close(stop)
		}
	}
}

func (l *Loop) id() uint64 {
	l.nextID++
	return l.nextID
}

// offer queues fn without blocking, dropping it when the loop is full.
func (l *Loop) offer(fn func()) {
	select {
	case l.ingress <- fn:
	case <-l.done:
	default:
		l.log.Debug().Msg("loop saturated, dropping tick")
	}
}

func (l *Loop) untilRefresh() time.Duration {
	elapsed := l.Now() % l.refresh
	return l.refresh - elapsed
}

// flushFrames runs every pending frame callback in request order. Frames
// requested while flushing wait for the next refresh.
func (l *Loop) flushFrames() {
	l.frameArmed = false
	if len(l.frames) == 0 {
		return
	}
	batch := l.frames
	l.frames = make(map[uint64]func())
	l.flushing = batch
	defer func() { l.flushing = nil }()

	ids := make([]uint64, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		fn, ok := batch[id]
		if !ok {
			continue
		}
		l.exec(fn)
		l.drainDeferred()
	}
}

func (l *Loop) drainDeferred() {
	for len(l.deferred) > 0 {
		fn := l.deferred[0]
		l.deferred[0] = nil
		l.deferred = l.deferred[1:]
		l.exec(fn)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("recovered panic on loop")
		}
	}()
	fn()
}

func (l *Loop) shutdown() {
	close(l.done)
	if l.frameTimer != nil {
		l.frameTimer.Stop()
	}
	for id, stop := range l.intervals {
		delete(l.intervals, id)
		close(stop)
	}
}
