package stream

import (
	"math/rand"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/ledtick/schedule"
	"github.com/rs/zerolog"
)

// Scheduler is the part of schedule.Scheduler the stream package uses.
type Scheduler interface {
	Schedule(fn schedule.Func, owner any) schedule.ID
	ScheduleWithDelay(fn schedule.Func, owner any, delay time.Duration, limit int) schedule.ID
	Unschedule(id schedule.ID)
	SetGroupPaused(group any, paused bool) int
}

// ControllerStatus describes what a Controller is showing.
type ControllerStatus struct {
	Animation   string  `json:"animation"`
	Next        string  `json:"next,omitempty"`
	Transition  float64 `json:"transition"`
	Paused      bool    `json:"paused"`
	Calibrating bool    `json:"calibrating"`
}

// Controller that manages animations. It advances the current animation on
// every scheduler tick and crossfades to the next one when cycled.
type Controller struct {
	sched     Scheduler
	stage     *Stage
	calibrate *Calibrate
	log       zerolog.Logger

	rotation      []func() Animation
	rotationIndex int

	animation      Animation
	nextAnimation  Animation
	transition     float64
	transitionTime time.Duration

	id      schedule.ID
	running bool
	paused  bool
}

// NewController creates an instance of a Controller showing the first
// animation of the default rotation.
func NewController(sched Scheduler, stage *Stage, numPixels int, transitionTime time.Duration,
	rng *rand.Rand, log zerolog.Logger) *Controller {

	c := new(Controller)
	c.sched = sched
	c.stage = stage
	c.log = log
	c.transitionTime = transitionTime
	c.rotation = DefaultRotation(numPixels, rng)
	c.animation = c.rotation[0]()
	c.rotationIndex = 0

	return c
}

// DefaultRotation returns constructors for the animations a Controller
// cycles through.
func DefaultRotation(numPixels int, rng *rand.Rand) []func() Animation {
	backColour, _ := colorful.Hex("#000005")
	foreColour, _ := colorful.Hex("#808080")
	streakBack, _ := colorful.Hex("#050202")
	palette := []colorful.Color{
		colorful.Hcl(350.0, 0.8, 0.1),
		colorful.Hcl(130.0, 0.6, 0.08),
		colorful.Hcl(280.0, 1.0, 0.06),
	}
	return []func() Animation{
		func() Animation { return NewTwinkle(numPixels, numPixels/5+1, foreColour, backColour, rng) },
		func() Animation { return NewGradientTrail(numPixels, RainbowGradient, 180, -4) },
		func() Animation { return NewStreak(numPixels, 0.8, streakBack, rng) },
		func() Animation { return NewMultiTwinkle(numPixels, 0.3, palette, rng) },
		func() Animation {
			return NewInfinityStripe(numPixels, NewStripeGenerator(nil, 150, 400, rng), 12, true)
		},
	}
}

// SetRotation replaces the animations cycled through. The current
// animation keeps running until the next Cycle.
func (c *Controller) SetRotation(rotation []func() Animation) {
	if len(rotation) == 0 {
		return
	}
	c.rotation = rotation
	c.rotationIndex = len(rotation) - 1
}

// SetCalibrate attaches a calibration whose frames replace the animation
// while it runs.
func (c *Controller) SetCalibrate(cal *Calibrate) {
	c.calibrate = cal
	cal.keepPaused = c.Paused
}

// MemberOf reports whether the controller animates stage.
func (c *Controller) MemberOf(group any) bool {
	s, ok := group.(*Stage)
	return ok && s == c.stage
}

// Start registers the controller with the scheduler.
func (c *Controller) Start() {
	if c.running {
		return
	}
	c.id = c.sched.Schedule(c.step, c)
	c.running = true
	if c.paused {
		c.sched.SetGroupPaused(c.stage, true)
	}
}

// Stop unregisters the controller.
func (c *Controller) Stop() {
	if !c.running {
		return
	}
	c.sched.Unschedule(c.id)
	c.running = false
}

// Pause freezes every callback on the controller's stage.
func (c *Controller) Pause() {
	c.paused = true
	n := c.sched.SetGroupPaused(c.stage, true)
	c.log.Info().Str("stage", c.stage.Name).Int("callbacks", n).Msg("stage paused")
}

// Resume undoes Pause.
func (c *Controller) Resume() {
	c.paused = false
	if c.calibrating() {
		return
	}
	n := c.sched.SetGroupPaused(c.stage, false)
	c.log.Info().Str("stage", c.stage.Name).Int("callbacks", n).Msg("stage resumed")
}

// Paused reports whether Pause is in effect.
func (c *Controller) Paused() bool {
	return c.paused
}

// Cycle starts a crossfade to the next animation in the rotation. It is
// ignored while a crossfade is already running.
func (c *Controller) Cycle() {
	if c.nextAnimation != nil {
		return
	}
	c.rotationIndex = (c.rotationIndex + 1) % len(c.rotation)
	c.nextAnimation = c.rotation[c.rotationIndex]()
	c.transition = 0.0
	c.log.Info().
		Str("from", animationName(c.animation)).
		Str("to", animationName(c.nextAnimation)).
		Msg("cycling animation")
}

// Status returns what the controller is showing.
func (c *Controller) Status() ControllerStatus {
	return ControllerStatus{
		Animation:   animationName(c.animation),
		Next:        animationName(c.nextAnimation),
		Transition:  c.transition,
		Paused:      c.paused,
		Calibrating: c.calibrating(),
	}
}

func (c *Controller) calibrating() bool {
	return c.calibrate != nil && c.calibrate.Active()
}

func (c *Controller) step(dt time.Duration) {
	c.animation.Advance(dt)
	if c.nextAnimation == nil {
		return
	}

	c.nextAnimation.Advance(dt)
	c.transition += float64(dt) / float64(c.transitionTime)
	if c.transition >= 1.0 {
		c.animation = c.nextAnimation
		c.nextAnimation = nil
		c.transition = 0.0
	}
}

// CalculateFrame renders the current animation, blended with the next one
// during a crossfade, or the calibration pattern while calibrating.
func (c *Controller) CalculateFrame() *Frame {
	if c.calibrating() {
		return c.calibrate.CalculateFrame()
	}

	f := c.animation.CalculateFrame()
	if c.nextAnimation != nil {
		f = f.InterpolateFrame(c.nextAnimation.CalculateFrame(), c.transition)
	}
	return f
}
