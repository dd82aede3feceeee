package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matt-g-everett/ledtick/loop"
	"github.com/matt-g-everett/ledtick/schedule"
)

func startLoop(t *testing.T, opts ...loop.Option) *loop.Loop {
	t.Helper()
	l := loop.New(append([]loop.Option{loop.WithRefresh(2 * time.Millisecond)}, opts...)...)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return l
}

func call(t *testing.T, l *loop.Loop, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Call(ctx, fn); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func wait(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestPostRunsInOrder(t *testing.T) {
	l := startLoop(t)
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		if err := l.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}

	var n int
	call(t, l, func() { n = len(got) })
	if n != 100 {
		t.Fatalf("ran %d functions, want 100", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d", i, v)
		}
	}
}

func TestDeferRunsAfterCurrent(t *testing.T) {
	l := startLoop(t)
	var order []string
	call(t, l, func() {
		l.Defer(func() { order = append(order, "deferred") })
		order = append(order, "body")
	})

	var got []string
	call(t, l, func() { got = append(got, order...) })
	if len(got) != 2 || got[0] != "body" || got[1] != "deferred" {
		t.Fatalf("order = %v", got)
	}
}

func TestRequestFrame(t *testing.T) {
	l := startLoop(t)
	fired := make(chan struct{})
	cancelled := false

	call(t, l, func() {
		cancel := l.RequestFrame(func() { cancelled = true })
		cancel()
		l.RequestFrame(func() { close(fired) })
	})
	wait(t, fired, "frame")

	var got bool
	call(t, l, func() { got = cancelled })
	if got {
		t.Fatalf("cancelled frame ran")
	}
}

func TestFrameChain(t *testing.T) {
	l := startLoop(t)
	done := make(chan struct{})
	count := 0

	var frame func()
	frame = func() {
		count++
		if count == 3 {
			close(done)
			return
		}
		l.RequestFrame(frame)
	}
	call(t, l, func() { l.RequestFrame(frame) })
	wait(t, done, "three frames")
}

func TestEveryCancel(t *testing.T) {
	l := startLoop(t)
	ticked := make(chan struct{})
	count := 0
	var cancel func()

	call(t, l, func() {
		cancel = l.Every(time.Millisecond, func() {
			count++
			if count == 3 {
				cancel()
				close(ticked)
			}
		})
	})
	wait(t, ticked, "three ticks")

	time.Sleep(20 * time.Millisecond)
	var got int
	call(t, l, func() { got = count })
	if got != 3 {
		t.Fatalf("count = %d after cancel, want 3", got)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	l := startLoop(t)
	if err := l.Post(func() { panic("boom") }); err != nil {
		t.Fatalf("Post: %v", err)
	}
	ran := false
	call(t, l, func() { ran = true })
	if !ran {
		t.Fatalf("loop stopped after a panic")
	}
}

func TestClosed(t *testing.T) {
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	call(t, l, func() {})
	if err := l.Run(context.Background()); !errors.Is(err, loop.ErrAlreadyRunning) {
		t.Fatalf("second Run err = %v", err)
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v", err)
	}
	if err := l.Post(func() {}); !errors.Is(err, loop.ErrClosed) {
		t.Fatalf("Post after close err = %v", err)
	}
}

func TestDrivesScheduler(t *testing.T) {
	for _, frames := range []bool{true, false} {
		frames := frames
		name := "interval"
		if frames {
			name = "frame"
		}
		t.Run(name, func(t *testing.T) {
			l := startLoop(t)
			s, err := schedule.New(l, schedule.WithAnimationFrame(frames), schedule.WithDisplayRate(2*time.Millisecond))
			if err != nil {
				t.Fatalf("schedule.New: %v", err)
			}

			fired := make(chan struct{})
			var elapsed time.Duration
			call(t, l, func() {
				s.Start()
				s.CallAfter(func(dt time.Duration) {
					elapsed = dt
					close(fired)
				}, nil, 10*time.Millisecond)
			})
			wait(t, fired, "call after")

			var active bool
			var source schedule.Source
			call(t, l, func() {
				active = s.Active()
				source = s.Snapshot().Source
			})
			if active {
				t.Fatalf("scheduler still active after its only callback ran")
			}
			if elapsed < 10*time.Millisecond {
				t.Fatalf("elapsed = %v, want at least 10ms", elapsed)
			}
			if frames && source != schedule.SourceFrame || !frames && source != schedule.SourceInterval {
				t.Fatalf("source = %v", source)
			}
		})
	}
}
