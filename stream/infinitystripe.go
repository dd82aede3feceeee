package stream

import (
	"math"
	"time"
)

// An InfinityStripe is an Animation that scrolls an endless sequence of
// stripes along the strip. When adjusted, stripes are stretched towards the
// end of the strip, which suits a strip wound up a cone.
type InfinityStripe struct {
	numPixels int
	generator *StripeGenerator
	speed     float64
	adjusted  bool
	stripes   []Stripe
	current   float64
}

// NewInfinityStripe creates an instance of an InfinityStripe object. speed
// is in pixels per second; stripes always move towards the start.
func NewInfinityStripe(numPixels int, generator *StripeGenerator, speed float64, adjusted bool) *InfinityStripe {
	s := new(InfinityStripe)
	s.numPixels = numPixels
	s.generator = generator
	s.speed = math.Abs(speed)
	s.adjusted = adjusted
	s.stripes = make([]Stripe, 0, 20)
	return s
}

func (s *InfinityStripe) addStripe() Stripe {
	stripe := s.generator.CreateStripe()
	s.stripes = append(s.stripes, stripe)
	return stripe
}

// getStripe returns the stripe covering offset and the offset at which it
// ends, generating stripes as needed.
func (s *InfinityStripe) getStripe(offset float64) (Stripe, float64) {
	if len(s.stripes) == 0 {
		s.addStripe()
	}

	length := 0
	for _, stripe := range s.stripes {
		length += stripe.Length
		if offset < float64(length) {
			return stripe, float64(length)
		}
	}

	for {
		stripe := s.addStripe()
		length += stripe.Length
		if offset < float64(length) {
			return stripe, float64(length)
		}
	}
}

// Advance scrolls the stripes and culls the ones that have passed.
func (s *InfinityStripe) Advance(dt time.Duration) {
	s.current += s.speed * dt.Seconds()
	for len(s.stripes) > 0 && s.current >= float64(s.stripes[0].Length) {
		s.current -= float64(s.stripes[0].Length)
		s.stripes = s.stripes[1:]
	}
}

// CalculateFrame creates a new Frame instance.
func (s *InfinityStripe) CalculateFrame() *Frame {
	f := NewFrame(s.numPixels)

	adjustmentFactor := 1.0
	currentStripe, stripeEnd := s.getStripe(s.current)
	for i := 0; i < s.numPixels; i++ {
		if s.adjusted {
			adjustmentFactor = 1.0 + 1.4*(float64(i)/float64(s.numPixels))
		}

		offset := adjustmentFactor*float64(i) + s.current
		if offset >= stripeEnd {
			currentStripe, stripeEnd = s.getStripe(offset)
		}

		f.pixels[i] = currentStripe.Colour
	}

	return f
}
