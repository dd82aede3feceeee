package stream

import (
	"math"
	"time"
)

// A GradientTrail is an Animation that cycles a gradient along an led strip.
type GradientTrail struct {
	numPixels   int
	gradient    GradientTable
	trailLength int
	speed       float64
	saturation  float64
	luminance   float64
	current     float64
}

// NewGradientTrail creates an instance of a GradientTrail object. speed is
// in pixels per second and may be negative to reverse the direction.
func NewGradientTrail(numPixels int, gradient GradientTable, trailLength int, speed float64) *GradientTrail {
	g := new(GradientTrail)
	g.numPixels = numPixels
	g.gradient = gradient
	g.trailLength = trailLength
	if g.trailLength <= 0 {
		g.trailLength = 1
	}
	g.speed = speed
	g.saturation = 1.0
	g.luminance = 0.05
	g.current = 0

	return g
}

// Advance moves the gradient along the strip.
func (g *GradientTrail) Advance(dt time.Duration) {
	length := float64(g.trailLength)
	g.current = math.Mod(g.current+g.speed*dt.Seconds(), length)
	if g.current < 0 {
		g.current += length
	}
}

// CalculateFrame creates a new Frame instance.
func (g *GradientTrail) CalculateFrame() *Frame {
	f := NewFrame(g.numPixels)
	length := float64(g.trailLength)
	for i := 0; i < g.numPixels; i++ {
		offset := math.Mod(float64(i)-g.current, length)
		if offset < 0 {
			offset += length
		}
		f.pixels[i] = g.gradient.GetColor(offset/length, g.saturation, g.luminance)
	}

	return f
}
