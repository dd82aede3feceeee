package stream

import (
	"math/rand"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/matt-g-everett/ledtick/util"
)

const (
	multiTwinkleMinLife = 300 * time.Millisecond
	multiTwinkleMaxLife = 1200 * time.Millisecond
	multiTwinkleMaxLum  = 0.6
)

type multiParticle struct {
	colour     colorful.Color
	nextColour colorful.Color
	lut        []float64
	age        time.Duration
	lifetime   time.Duration
	running    bool
}

func (p *multiParticle) advance(dt time.Duration) {
	if !p.running {
		return
	}
	p.age += dt
	if p.age > p.lifetime/2 {
		p.colour = p.nextColour
	}
	if p.age >= p.lifetime {
		p.age = 0
		p.running = false
	}
}

func (p *multiParticle) currentColour() colorful.Color {
	if !p.running {
		return p.colour
	}
	gain := util.Sample(p.lut, float64(p.age)/float64(p.lifetime))
	h, c, l := p.colour.Hcl()

	// Lift towards the maximum luminance.
	return colorful.Hcl(h, c, l+(multiTwinkleMaxLum-l)*gain)
}

// A MultiTwinkle is an Animation where every pixel has a background colour
// from a palette and occasionally scintillates, changing to another palette
// colour at its brightest.
type MultiTwinkle struct {
	numPixels   int
	perSecond   float64
	backColours []colorful.Color
	rng         *rand.Rand
	luts        util.LutCache
	pixels      []*multiParticle
}

// NewMultiTwinkle creates an instance of a MultiTwinkle object. perSecond
// is the chance per second that an idle pixel starts to scintillate.
func NewMultiTwinkle(numPixels int, perSecond float64, backColours []colorful.Color, rng *rand.Rand) *MultiTwinkle {
	t := new(MultiTwinkle)
	t.numPixels = numPixels
	t.perSecond = perSecond
	t.backColours = backColours
	t.rng = rng
	t.luts = util.LutCache{}
	return t
}

func (t *MultiTwinkle) randomBackColour() colorful.Color {
	if len(t.backColours) == 0 {
		return colorful.Color{}
	}
	return t.backColours[t.rng.Intn(len(t.backColours))]
}

func (t *MultiTwinkle) initialise() {
	if t.pixels != nil {
		return
	}
	t.pixels = make([]*multiParticle, t.numPixels)
	for i := range t.pixels {
		c := t.randomBackColour()
		t.pixels[i] = &multiParticle{colour: c, nextColour: c}
	}
}

func (t *MultiTwinkle) scintillate(p *multiParticle) {
	steps := int((multiTwinkleMaxLife-multiTwinkleMinLife)/twinkleLutStep) + 1
	p.lifetime = multiTwinkleMinLife + time.Duration(t.rng.Intn(steps))*twinkleLutStep
	p.lut = t.luts.Get(int(p.lifetime / twinkleLutStep))
	p.nextColour = t.randomBackColour()
	p.age = 0
	p.running = true
}

// Advance starts scintillations by chance and ages the running ones.
func (t *MultiTwinkle) Advance(dt time.Duration) {
	t.initialise()
	chance := t.perSecond * dt.Seconds()
	for _, p := range t.pixels {
		if !p.running && t.rng.Float64() < chance {
			t.scintillate(p)
		}
		p.advance(dt)
	}
}

// CalculateFrame creates a new Frame instance.
func (t *MultiTwinkle) CalculateFrame() *Frame {
	t.initialise()
	f := NewFrame(t.numPixels)
	for i, p := range t.pixels {
		f.pixels[i] = p.currentColour()
	}

	return f
}
