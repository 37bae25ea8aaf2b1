package engine

import (
	"math"
	"math/rand"

	"stratadyn.ai/internal/sim/layer"
)

// Mode selects the phase-transition detector built into an engine. It is
// fixed at construction; Step never branches on runtime booleans.
type Mode int

const (
	// ModeStatic flags a layer critical when its energy is below the static
	// threshold and applies that layer's full multiplier for the step.
	ModeStatic Mode = iota
	// ModeIntegrated uses the power-derived dynamic threshold; only the
	// dominant critical layer gets the full multiplier, co-critical layers
	// get the partial one.
	ModeIntegrated
	// ModeStochastic turns criticality into a hazard rate and fires leaps
	// probabilistically, including rare spontaneous leaps above threshold.
	ModeStochastic
)

func (m Mode) String() string {
	switch m {
	case ModeIntegrated:
		return "integrated"
	case ModeStochastic:
		return "stochastic"
	default:
		return "static"
	}
}

// leapDecision is the detector output for one step. gamma carries the
// amplified conversion rates as local values; the shared Params is never
// written.
type leapDecision struct {
	critical  [layer.Count]bool
	threshold PerLayer
	gamma     PerLayer
	dominant  layer.Layer
	kind      LeapKind
	leapLayer layer.Layer
}

type detector interface {
	detect(p *Params, s *State, power PerLayer, dt float64) leapDecision
}

type staticDetector struct{}

func (staticDetector) detect(p *Params, s *State, power PerLayer, dt float64) leapDecision {
	d := leapDecision{
		threshold: p.Theta,
		gamma:     p.GammaToDirect,
		dominant:  layer.None,
		leapLayer: layer.None,
	}
	for _, l := range layer.Order {
		if s.Energy[l] < p.Theta[l] {
			d.critical[l] = true
			d.gamma[l] *= p.Multiplier[l]
		}
	}
	d.dominant = dominantOf(d.critical, power)
	if d.dominant != layer.None {
		d.kind = LeapInduced
		d.leapLayer = d.dominant
	}
	return d
}

type integratedDetector struct{}

func (integratedDetector) detect(p *Params, s *State, power PerLayer, dt float64) leapDecision {
	d := leapDecision{
		gamma:     p.GammaToDirect,
		dominant:  layer.None,
		leapLayer: layer.None,
	}
	for _, l := range layer.Order {
		d.threshold[l] = dynamicTheta(p, l, power[l], s.Inertia[l])
		d.critical[l] = s.Energy[l] < d.threshold[l]
	}
	d.dominant = dominantOf(d.critical, power)
	if d.dominant == layer.None {
		return d
	}
	d.kind = LeapInduced
	d.leapLayer = d.dominant
	for _, l := range layer.Order {
		if !d.critical[l] {
			continue
		}
		if l == d.dominant {
			d.gamma[l] *= p.Multiplier[l]
		} else {
			d.gamma[l] *= 1.0 + p.Multiplier[l]*p.CoCriticalFraction
		}
	}
	return d
}

type stochasticDetector struct {
	rng *rand.Rand
}

// detect draws one uniform value per layer every step, in enumeration
// order, so two runs with the same seed consume the stream identically
// whether or not anything fires.
func (sd *stochasticDetector) detect(p *Params, s *State, power PerLayer, dt float64) leapDecision {
	d := leapDecision{
		threshold: p.Theta,
		gamma:     p.GammaToDirect,
		dominant:  layer.None,
		leapLayer: layer.None,
	}
	var fired [layer.Count]bool
	for _, l := range layer.Order {
		below := s.Energy[l] < p.Theta[l]
		d.critical[l] = below
		h := p.HazardBase
		if below {
			h = p.HazardBase * math.Exp((p.Theta[l]-s.Energy[l])/p.HazardSensitivity)
		}
		prob := 1.0 - math.Exp(-h*dt)
		if sd.rng.Float64() < prob {
			fired[l] = true
		}
	}
	d.dominant = dominantOf(fired, power)
	if d.dominant == layer.None {
		return d
	}
	d.leapLayer = d.dominant
	if d.critical[d.dominant] {
		d.kind = LeapInduced
	} else {
		d.kind = LeapSpontaneous
	}
	for _, l := range layer.Order {
		if !fired[l] {
			continue
		}
		if l == d.dominant {
			d.gamma[l] *= p.Multiplier[l]
		} else {
			d.gamma[l] *= 1.0 + p.Multiplier[l]*p.CoCriticalFraction
		}
	}
	return d
}

// LeapProbability reports the per-step firing probability the stochastic
// detector would use for a layer at the given energy. Exposed for tests and
// for callers plotting hazard curves.
func LeapProbability(p Params, l layer.Layer, energy, dt float64) float64 {
	h := p.HazardBase
	if energy < p.Theta[l] {
		h = p.HazardBase * math.Exp((p.Theta[l]-energy)/p.HazardSensitivity)
	}
	return 1.0 - math.Exp(-h*dt)
}
