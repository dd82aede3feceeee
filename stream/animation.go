package stream

import (
	"reflect"
	"time"
)

// An Animation implements a way to render a specific animation. Advance
// moves it forward in time and CalculateFrame renders its current state.
type Animation interface {
	Advance(dt time.Duration)
	CalculateFrame() *Frame
}

// A FrameSource renders frames on demand.
type FrameSource interface {
	CalculateFrame() *Frame
}

// A Stage groups the callbacks that animate the strip so they can be paused
// together.
type Stage struct {
	Name string
}

func animationName(a Animation) string {
	if a == nil {
		return ""
	}
	t := reflect.TypeOf(a)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
