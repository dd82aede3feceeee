package schedule

import (
	"time"

	"github.com/matt-g-everett/ledtick/schedule/scheduletest"
)

// intervalHost hides the frame capability of a test host.
type intervalHost struct {
	h *scheduletest.Host
}

func (i intervalHost) Defer(fn func()) { i.h.Defer(fn) }

func (i intervalHost) Now() time.Duration { return i.h.Now() }

func (i intervalHost) Every(p time.Duration, fn func()) (cancel func()) { return i.h.Every(p, fn) }

// deferOnly has no tick source at all.
type deferOnly struct{}

func (deferOnly) Defer(fn func()) {}
