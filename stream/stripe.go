package stream

import (
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
)

// A Stripe is a run of pixels of one colour.
type Stripe struct {
	Colour colorful.Color
	Length int
}

// StripeGenerator creates stripes of random length, either of random hue or
// drawn from a palette without repeating the previous colour.
type StripeGenerator struct {
	palette   []colorful.Color
	current   int
	rng       *rand.Rand
	stripeMin int
	stripeMax int
}

// NewStripeGenerator creates a StripeGenerator. A nil palette produces
// random hues.
func NewStripeGenerator(palette []colorful.Color, minLength, maxLength int, rng *rand.Rand) *StripeGenerator {
	g := new(StripeGenerator)
	g.palette = palette
	g.rng = rng
	g.stripeMin = minLength
	g.stripeMax = maxLength
	if g.stripeMin < 1 {
		g.stripeMin = 1
	}
	if g.stripeMax <= g.stripeMin {
		g.stripeMax = g.stripeMin + 1
	}
	return g
}

// CreateStripe returns the next stripe.
func (g *StripeGenerator) CreateStripe() Stripe {
	var colour colorful.Color
	switch len(g.palette) {
	case 0:
		colour = colorful.Hsl(g.rng.Float64()*360.0, 1.0, 0.2)
	case 1:
		colour = g.palette[0]
	default:
		// Choose a new colour that's different from the previous colour
		next := g.rng.Intn(len(g.palette) - 1)
		if next >= g.current {
			next++
		}
		g.current = next
		colour = g.palette[g.current]
	}

	length := g.rng.Intn(g.stripeMax-g.stripeMin) + g.stripeMin
	return Stripe{Colour: colour, Length: length}
}
