package stream

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/matt-g-everett/ledtick/schedule"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const publishTimeout = 5 * time.Second

// Publisher is the part of an MQTT client used to send frames.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// A FrameSink receives every encoded frame. WriteFrame must not block.
type FrameSink interface {
	WriteFrame(data []byte)
}

// StreamerStats counts frames handled by a Streamer.
type StreamerStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

// Streamer that streams RGB data frames to an ledrx device.
type Streamer struct {
	client   Publisher
	source   FrameSource
	topic    string
	interval time.Duration
	limiter  *rate.Limiter
	sinks    []FrameSink
	log      zerolog.Logger

	sched   Scheduler
	id      schedule.ID
	running bool
	stats   StreamerStats
}

// NewStreamer creates an instance of a Streamer publishing frames from
// source every interval, at most maxRate frames per second.
func NewStreamer(client Publisher, source FrameSource, topic string, interval time.Duration,
	maxRate float64, log zerolog.Logger) *Streamer {

	s := new(Streamer)
	s.client = client
	s.source = source
	s.topic = topic
	s.interval = interval
	s.limiter = rate.NewLimiter(rate.Limit(maxRate), 2)
	s.log = log
	return s
}

// AddSink registers a sink for encoded frames.
func (s *Streamer) AddSink(sink FrameSink) {
	s.sinks = append(s.sinks, sink)
}

// SetMaxRate changes the publish limit.
func (s *Streamer) SetMaxRate(maxRate float64) {
	s.limiter.SetLimit(rate.Limit(maxRate))
}

// Stats returns the frame counters.
func (s *Streamer) Stats() StreamerStats {
	return s.stats
}

// Start causes the Streamer to send Frames continuously.
func (s *Streamer) Start(sched Scheduler) {
	if s.running {
		return
	}
	s.sched = sched
	s.id = sched.ScheduleWithDelay(s.send, s, s.interval, schedule.Unlimited)
	s.running = true
}

// Stop ends streaming.
func (s *Streamer) Stop() {
	if !s.running {
		return
	}
	s.sched.Unschedule(s.id)
	s.running = false
}

func (s *Streamer) send(dt time.Duration) {
	if !s.limiter.Allow() {
		s.stats.Dropped++
		return
	}
	s.SendFrame()
}

// SendFrame sends a frame as binary over MQTT to an ledrx device.
func (s *Streamer) SendFrame() {
	b, err := s.source.CalculateFrame().MarshalBinary()
	if err != nil {
		s.log.Error().Err(err).Msg("encode frame")
		return
	}

	token := s.client.Publish(s.topic, 0, false, b)
	go awaitToken(s.log, token, s.topic)

	for _, sink := range s.sinks {
		sink.WriteFrame(b)
	}
	s.stats.Sent++
}

// awaitToken logs a failed publish without blocking the caller.
func awaitToken(log zerolog.Logger, token mqtt.Token, topic string) {
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", topic).Msg("publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
	}
}
