package stream

import (
	"container/list"
	"math"
	"math/rand"
	"time"

	"github.com/fogleman/ease"
	"github.com/lucasb-eyer/go-colorful"
)

type streakParticle struct {
	colour   colorful.Color
	start    float64
	current  float64
	speed    float64
	length   float64
	gainRate float64
}

func newStreakParticle(rng *rand.Rand, numPixels int) *streakParticle {
	p := new(streakParticle)
	p.colour = colorful.Hcl(rng.Float64()*360.0, 0.8, 0.35)
	p.length = 10
	p.speed = 6 + rng.Float64()*6
	p.gainRate = 0.05
	if rng.Intn(2) == 0 {
		p.start = -p.length
	} else {
		p.start = float64(numPixels)
		p.speed = -p.speed
	}
	p.current = p.start
	return p
}

func (p *streakParticle) move(dt time.Duration, numPixels float64) bool {
	p.current += p.speed * dt.Seconds()
	return p.current <= numPixels && p.current >= 0-p.length
}

func (p *streakParticle) easeDistance() float64 {
	return math.Abs(p.current-p.start) * p.gainRate
}

// overallGain eases in over the first unit of distance and out over the
// second.
func (p *streakParticle) overallGain(easeDistance float64) float64 {
	if easeDistance > 2 {
		return 0
	} else if easeDistance > 1 {
		easeDistance = 1 - (easeDistance - 1)
	}

	return ease.InOutQuad(easeDistance)
}

func (p *streakParticle) addStreak(f *Frame) bool {
	d := p.easeDistance()
	if d > 2 {
		return false
	}
	gain := p.overallGain(d)
	start := int(math.Ceil(p.current))
	end := int(math.Floor(p.current + p.length))
	for i := start; i <= end; i++ {
		if i < 0 || i >= len(f.pixels) {
			continue
		}
		f.pixels[i] = f.pixels[i].BlendHcl(p.colour, gain)
	}
	return true
}

// A Streak is an Animation that creates streaks across the tree that fade in then out.
type Streak struct {
	numPixels  int
	backColour colorful.Color
	perSecond  float64
	rng        *rand.Rand
	particles  *list.List
}

// NewStreak creates an instance of a Streak object. perSecond is the mean
// number of new streaks per second.
func NewStreak(numPixels int, perSecond float64, backColour colorful.Color, rng *rand.Rand) *Streak {
	s := new(Streak)
	s.numPixels = numPixels
	s.perSecond = perSecond
	s.backColour = backColour
	s.rng = rng
	s.particles = list.New()

	return s
}

// Len returns the number of live streaks.
func (s *Streak) Len() int {
	return s.particles.Len()
}

// Advance moves the streaks and occasionally starts a new one.
func (s *Streak) Advance(dt time.Duration) {
	for e := s.particles.Front(); e != nil; {
		next := e.Next()
		p := e.Value.(*streakParticle)
		if !p.move(dt, float64(s.numPixels)) || p.easeDistance() > 2 {
			s.particles.Remove(e)
		}
		e = next
	}

	if s.rng.Float64() < s.perSecond*dt.Seconds() {
		s.particles.PushBack(newStreakParticle(s.rng, s.numPixels))
	}
}

// CalculateFrame creates a new Frame instance.
func (s *Streak) CalculateFrame() *Frame {
	f := NewFrame(s.numPixels)
	f.Fill(s.backColour)
	for e := s.particles.Front(); e != nil; e = e.Next() {
		e.Value.(*streakParticle).addStreak(f)
	}

	return f
}
