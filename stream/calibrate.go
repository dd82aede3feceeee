package stream

import (
	"encoding/json"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/ledtick/schedule"
	"github.com/rs/zerolog"
)

// Point that represents LED location
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CalibrationMessage is received from the mobile app. Type is one of
// "start", "data" or "stop"; Locations is only set on "data".
type CalibrationMessage struct {
	Type      string  `json:"type"`
	Locations []Point `json:"locations,omitempty"`
}

// CalibrationStatus is published to the app as the sweep progresses.
type CalibrationStatus struct {
	Type      string `json:"type"`
	LitLength int    `json:"litLength"`
}

// Subscriber is the part of an MQTT client Calibrate listens with.
type Subscriber interface {
	Publisher
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Calibrate sweeps binary patterns across the strip so a camera can locate
// each pixel. Step n lights alternating runs of 2^n pixels, from the
// longest run down to single pixels.
type Calibrate struct {
	client      Subscriber
	clientTopic string
	serverTopic string
	post        func(func()) error
	sched       Scheduler
	stage       *Stage
	stepDelay   time.Duration
	numPixels   int
	log         zerolog.Logger
	keepPaused  func() bool

	active    bool
	litLength int
	frame     *Frame
	id        schedule.ID
	samples   map[int][]Point
}

// NewCalibrate creates a Calibrate. post must run functions on the
// scheduler's goroutine.
func NewCalibrate(client Subscriber, clientTopic, serverTopic string, post func(func()) error,
	sched Scheduler, stage *Stage, numPixels int, stepDelay time.Duration, log zerolog.Logger) *Calibrate {

	c := new(Calibrate)
	c.client = client
	c.clientTopic = clientTopic
	c.serverTopic = serverTopic
	c.post = post
	c.sched = sched
	c.stage = stage
	c.numPixels = numPixels
	c.stepDelay = stepDelay
	c.log = log
	c.active = false
	c.samples = make(map[int][]Point)
	return c
}

// Subscribe listens for calibration messages from the app.
func (c *Calibrate) Subscribe() error {
	token := c.client.Subscribe(c.clientTopic, 0, c.handleClientMessages)
	token.Wait()
	return token.Error()
}

func (c *Calibrate) handleClientMessages(client mqtt.Client, msg mqtt.Message) {
	c.log.Debug().
		Uint16("id", msg.MessageID()).
		Str("topic", msg.Topic()).
		Bytes("payload", msg.Payload()).
		Msg("calibration message")

	var message CalibrationMessage
	if err := json.Unmarshal(msg.Payload(), &message); err != nil {
		c.log.Warn().Err(err).Msg("bad calibration message")
		return
	}
	if err := c.post(func() { c.handle(message) }); err != nil {
		c.log.Warn().Err(err).Msg("calibration message dropped")
	}
}

func (c *Calibrate) handle(message CalibrationMessage) {
	switch message.Type {
	case "start":
		c.Start()
	case "stop":
		c.Abort()
	case "data":
		if c.active {
			c.samples[c.litLength] = message.Locations
		}
	default:
		c.log.Warn().Str("type", message.Type).Msg("unknown calibration message")
	}
}

// Active reports whether a sweep is running.
func (c *Calibrate) Active() bool {
	return c.active
}

// Samples returns the locations reported for each lit length of the last
// sweep.
func (c *Calibrate) Samples() map[int][]Point {
	return c.samples
}

// Start pauses the stage and begins a sweep.
func (c *Calibrate) Start() {
	if c.active {
		return
	}
	c.active = true
	c.frame = NewFrame(c.numPixels)
	c.litLength = int(math.Ceil(math.Log2(float64(c.numPixels))))
	c.samples = make(map[int][]Point)
	c.log.Info().Int("litLength", c.litLength).Msg("calibration started")

	c.sched.SetGroupPaused(c.stage, true)
	c.prepareFrame()
	c.publishStatus("started")
	c.id = c.sched.ScheduleWithDelay(c.sweep, c, c.stepDelay, c.litLength+1)
}

// Abort ends a running sweep early.
func (c *Calibrate) Abort() {
	if !c.active {
		return
	}
	c.sched.Unschedule(c.id)
	c.finish("aborted")
}

func (c *Calibrate) sweep(dt time.Duration) {
	if c.litLength == 0 {
		c.finish("done")
		return
	}
	c.litLength--
	c.prepareFrame()
	c.publishStatus("step")
}

func (c *Calibrate) finish(status string) {
	c.active = false
	if c.keepPaused == nil || !c.keepPaused() {
		c.sched.SetGroupPaused(c.stage, false)
	}
	c.publishStatus(status)
	c.log.Info().Str("status", status).Int("samples", len(c.samples)).Msg("calibration finished")
}

func (c *Calibrate) prepareFrame() {
	on, _ := colorful.Hex("#404040")
	off, _ := colorful.Hex("#000000")
	run := 1 << c.litLength
	for i := 0; i < len(c.frame.pixels); i++ {
		if (i/run)%2 == 0 {
			c.frame.pixels[i] = on
		} else {
			c.frame.pixels[i] = off
		}
	}
}

func (c *Calibrate) publishStatus(status string) {
	b, err := json.Marshal(CalibrationStatus{Type: status, LitLength: c.litLength})
	if err != nil {
		return
	}
	token := c.client.Publish(c.serverTopic, 0, false, b)
	go awaitToken(c.log, token, c.serverTopic)
}

// CalculateFrame returns the current calibration pattern.
func (c *Calibrate) CalculateFrame() *Frame {
	if c.frame == nil {
		return NewFrame(c.numPixels)
	}
	out := NewFrame(len(c.frame.pixels))
	copy(out.pixels, c.frame.pixels)
	return out
}
