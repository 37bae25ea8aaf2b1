package engine

import (
	"math"

	"stratadyn.ai/internal/sim/layer"
)

// structuralPowers computes |pressure| * energy * inertia * R per layer.
// The layer with the highest power among the critical set dominates the
// step and decides the leap amplification.
func structuralPowers(p *Params, s *State, pressureNorm PerLayer) PerLayer {
	var out PerLayer
	for _, l := range layer.Order {
		out[l] = pressureNorm[l] * s.Energy[l] * s.Inertia[l] * p.Resistance[l]
	}
	return out
}

// dynamicTheta lowers a layer's threshold as its structural power outgrows
// its resistance: high-power layers leap earlier. The +1 offset keeps the
// denominator away from zero; the result never drops below 0.3*Theta.
func dynamicTheta(p *Params, l layer.Layer, power, inertia float64) float64 {
	base := p.Theta[l]
	resistance := inertia*p.Resistance[l] + 1.0
	influence := math.Min(1.0, power/resistance)
	dyn := base * (1.0 - p.ThetaSensitivity*influence)
	return math.Max(0.3*base, dyn)
}

// dominantOf picks the max-power member of the flagged set. Ties resolve to
// the first layer in enumeration order; returns layer.None for an empty set.
func dominantOf(flagged [layer.Count]bool, power PerLayer) layer.Layer {
	dom := layer.None
	for _, l := range layer.Order {
		if !flagged[l] {
			continue
		}
		if dom == layer.None || power[l] > power[dom] {
			dom = l
		}
	}
	return dom
}
