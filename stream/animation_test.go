package stream

import (
	"math/rand"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

func validFrame(t *testing.T, name string, f *Frame, numPixels int) {
	t.Helper()
	if f.Len() != numPixels {
		t.Fatalf("%s: frame has %d pixels, want %d", name, f.Len(), numPixels)
	}
	if _, err := f.MarshalBinary(); err != nil {
		t.Fatalf("%s: MarshalBinary: %v", name, err)
	}
}

func TestRotationRendersEveryAnimation(t *testing.T) {
	const numPixels = 50
	rng := rand.New(rand.NewSource(1))
	for _, newAnimation := range DefaultRotation(numPixels, rng) {
		a := newAnimation()
		name := animationName(a)
		validFrame(t, name, a.CalculateFrame(), numPixels)
		for i := 0; i < 200; i++ {
			a.Advance(33 * time.Millisecond)
		}
		validFrame(t, name, a.CalculateFrame(), numPixels)
	}
}

func TestAnimationName(t *testing.T) {
	if got := animationName(NewGradientTrail(1, RainbowGradient, 1, 1)); got != "GradientTrail" {
		t.Fatalf("animationName = %q", got)
	}
	if got := animationName(nil); got != "" {
		t.Fatalf("animationName(nil) = %q", got)
	}
}

func TestGradientTrailWraps(t *testing.T) {
	g := NewGradientTrail(10, RainbowGradient, 10, 5)
	g.Advance(3 * time.Second)
	if g.current < 0 || g.current >= 10 {
		t.Fatalf("current = %v, want within [0, 10)", g.current)
	}

	g = NewGradientTrail(10, RainbowGradient, 10, -5)
	g.Advance(time.Second)
	if g.current < 0 || g.current >= 10 {
		t.Fatalf("reversed current = %v, want within [0, 10)", g.current)
	}
}

func TestGradientGetColorPastEnd(t *testing.T) {
	want := colorful.Hcl(360, 1, 0.5)
	if got := RainbowGradient.GetColor(1.5, 1, 0.5); got != want {
		t.Fatalf("GetColor(1.5) = %v, want %v", got, want)
	}
}

func TestTwinkleParticlesStayOnStrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	back := colorful.Color{}
	tw := NewTwinkle(20, 5, colorful.Color{R: 1, G: 1, B: 1}, back, rng)
	for i := 0; i < 500; i++ {
		tw.Advance(20 * time.Millisecond)
	}
	if len(tw.particles) != 5 {
		t.Fatalf("particles = %d, want 5", len(tw.particles))
	}
	for _, p := range tw.particles {
		if p.pixel < 0 || p.pixel >= 20 {
			t.Fatalf("pixel %d off strip", p.pixel)
		}
		if p.age >= p.lifetime {
			t.Fatalf("age %v not below lifetime %v", p.age, p.lifetime)
		}
		if p.lifetime < twinkleMinLife || p.lifetime > twinkleMaxLife {
			t.Fatalf("lifetime %v out of range", p.lifetime)
		}
	}
}

func TestStreakComesAndGoes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := NewStreak(30, 50, colorful.Color{}, rng)
	s.Advance(100 * time.Millisecond)
	if s.Len() == 0 {
		t.Fatalf("no streak started")
	}

	s.perSecond = 0
	for i := 0; i < 100; i++ {
		s.Advance(time.Second)
	}
	if s.Len() != 0 {
		t.Fatalf("streaks = %d, want 0", s.Len())
	}
}

func TestMultiTwinkleUsesPalette(t *testing.T) {
	palette := []colorful.Color{{R: 0.1}, {G: 0.1}}
	rng := rand.New(rand.NewSource(11))
	m := NewMultiTwinkle(40, 0, palette, rng)
	f := m.CalculateFrame()
	for i := 0; i < f.Len(); i++ {
		if f.Pixel(i) != palette[0] && f.Pixel(i) != palette[1] {
			t.Fatalf("idle pixel %d = %v, not from palette", i, f.Pixel(i))
		}
	}

	m.perSecond = 1000
	m.Advance(10 * time.Millisecond)
	running := 0
	for _, p := range m.pixels {
		if p.running {
			running++
		}
	}
	if running == 0 {
		t.Fatalf("no pixel scintillating")
	}

	m.perSecond = 0
	m.Advance(multiTwinkleMaxLife)
	for i, p := range m.pixels {
		if p.running {
			t.Fatalf("pixel %d still running", i)
		}
	}
}

func TestStripeGeneratorAvoidsRepeats(t *testing.T) {
	palette := []colorful.Color{{R: 1}, {G: 1}, {B: 1}}
	g := NewStripeGenerator(palette, 5, 10, rand.New(rand.NewSource(5)))
	prev := g.CreateStripe()
	for i := 0; i < 100; i++ {
		s := g.CreateStripe()
		if s.Colour == prev.Colour {
			t.Fatalf("stripe %d repeats %v", i, s.Colour)
		}
		if s.Length < 5 || s.Length >= 10 {
			t.Fatalf("length %d out of range", s.Length)
		}
		prev = s
	}
}

func TestInfinityStripeCullsPassedStripes(t *testing.T) {
	g := NewStripeGenerator([]colorful.Color{{R: 1}, {B: 1}}, 4, 5, rand.New(rand.NewSource(9)))
	s := NewInfinityStripe(10, g, 8, false)

	f := s.CalculateFrame()
	if f.Pixel(0) != f.Pixel(3) || f.Pixel(0) == f.Pixel(4) {
		t.Fatalf("first stripe not 4 pixels: %v %v %v", f.Pixel(0), f.Pixel(3), f.Pixel(4))
	}
	before := len(s.stripes)

	s.Advance(time.Second)
	if s.current < 0 || s.current >= 4 {
		t.Fatalf("current = %v, want within the first stripe", s.current)
	}
	if len(s.stripes) != before-2 {
		t.Fatalf("stripes = %d, want %d", len(s.stripes), before-2)
	}
	validFrame(t, "InfinityStripe", s.CalculateFrame(), 10)
}
