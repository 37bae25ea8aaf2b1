package engine

import (
	"math"

	"stratadyn.ai/internal/sim/layer"
)

// socialCoupling sums the energy and inertia contributions from every
// partner. A relationship inside the neutral band contributes nothing;
// cooperative partners diffuse state toward each other, competitive
// partners apply omega-weighted suppression proportional to the partner's
// energy.
func socialCoupling(p *Params, s *State, partners []Partner) (dE, dK PerLayer) {
	if p.CouplingStrength == 0 || len(partners) == 0 {
		return dE, dK
	}
	for _, other := range partners {
		rel := other.Relation
		switch {
		case rel > p.CooperationThreshold:
			for _, l := range layer.Order {
				dE[l] += p.Zeta[l] * (other.Energy[l] - s.Energy[l]) * rel * p.CouplingStrength
				dK[l] += p.Xi[l] * (other.Inertia[l] - s.Inertia[l]) * rel * p.CouplingStrength
			}
		case rel < -p.CooperationThreshold:
			f := math.Abs(rel)
			for _, l := range layer.Order {
				dE[l] += p.Omega[l] * other.Energy[l] * f * p.CouplingStrength
			}
		}
	}
	return dE, dK
}
