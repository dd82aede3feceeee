package stream

import (
	"math/rand"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/ledtick/util"
)

const (
	twinkleMinLife = time.Second
	twinkleMaxLife = 3 * time.Second
	twinkleLutStep = 50 * time.Millisecond
)

type twinkleParticle struct {
	pixel    int
	age      time.Duration
	lifetime time.Duration
	lut      []float64
}

// A Twinkle is an Animation that twinkles random particles.
type Twinkle struct {
	numPixels    int
	numParticles int
	foreColour   colorful.Color
	backColour   colorful.Color
	rng          *rand.Rand
	luts         util.LutCache

	initialised bool
	particles   []*twinkleParticle
}

// NewTwinkle creates an instance of a Twinkle object.
func NewTwinkle(numPixels int, numParticles int, foreColour, backColour colorful.Color, rng *rand.Rand) *Twinkle {
	t := new(Twinkle)
	t.numPixels = numPixels
	t.numParticles = numParticles
	t.foreColour = foreColour
	t.backColour = backColour
	t.rng = rng
	t.luts = util.LutCache{}

	t.initialised = false
	return t
}

func (t *Twinkle) initialise() {
	if t.initialised {
		return
	}
	t.particles = make([]*twinkleParticle, t.numParticles)
	for i := range t.particles {
		p := new(twinkleParticle)
		t.respawn(p)
		// Stagger so that particles don't all peak together.
		p.age = time.Duration(t.rng.Int63n(int64(p.lifetime)))
		t.particles[i] = p
	}
	t.initialised = true
}

func (t *Twinkle) respawn(p *twinkleParticle) {
	p.pixel = t.rng.Intn(t.numPixels)
	p.age = 0
	steps := int((twinkleMaxLife-twinkleMinLife)/twinkleLutStep) + 1
	p.lifetime = twinkleMinLife + time.Duration(t.rng.Intn(steps))*twinkleLutStep
	p.lut = t.luts.Get(int(p.lifetime / twinkleLutStep))
}

// Advance ages every particle, moving expired ones to a new pixel.
func (t *Twinkle) Advance(dt time.Duration) {
	t.initialise()
	for _, p := range t.particles {
		p.age += dt
		if p.age >= p.lifetime {
			t.respawn(p)
		}
	}
}

// CalculateFrame creates a new Frame instance.
func (t *Twinkle) CalculateFrame() *Frame {
	t.initialise()
	f := NewFrame(t.numPixels)
	f.Fill(t.backColour)
	for _, p := range t.particles {
		gain := util.Sample(p.lut, float64(p.age)/float64(p.lifetime))
		f.pixels[p.pixel] = t.backColour.BlendHcl(t.foreColour, gain)
	}

	return f
}
