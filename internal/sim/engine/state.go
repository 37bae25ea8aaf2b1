package engine

import "stratadyn.ai/internal/sim/layer"

// LeapKind classifies the last phase transition of an agent.
type LeapKind int

const (
	LeapNone LeapKind = iota
	// LeapInduced fired while the layer's energy was below its threshold.
	LeapInduced
	// LeapSpontaneous fired from the non-zero baseline hazard while the
	// layer was not below threshold. Stochastic mode only.
	LeapSpontaneous
)

func (k LeapKind) String() string {
	switch k {
	case LeapInduced:
		return "INDUCED"
	case LeapSpontaneous:
		return "SPONTANEOUS"
	default:
		return "NO_LEAP"
	}
}

// State is one agent's layered pressure-response snapshot. It is exclusively
// owned by that agent and mutated in place by Engine.Step; nothing else
// retains a reference. Energies stay >= 0 and inertias stay >= their floor
// after every step (enforced by clamping).
type State struct {
	Energy  PerLayer
	Direct  float64 // aggregate action energy, not tied to a structural layer
	Inertia PerLayer

	// Last-step inputs, recorded for diagnostics. Only the magnitudes feed
	// the dynamics.
	Pressure    [layer.Count]Vec3
	Reaction    [layer.Count]Vec3
	DirectForce Vec3

	Critical [layer.Count]bool
	Dominant layer.Layer
	Leap     LeapKind

	// Last is recomputed every step and never read back as input.
	Last Diagnostics
}

// Diagnostics is the per-step record handed to callers. All deltas are the
// amounts applied during that step (already scaled by dt where relevant).
type Diagnostics struct {
	Production      PerLayer
	DirectProduc    float64
	ConvToDirect    PerLayer
	ConvFromDirect  PerLayer
	Decay           PerLayer
	Flow            PerLayer // net dE per layer before integration
	DirectFlow      float64
	Transfer        [TransferCount]float64
	CouplingEnergy  PerLayer
	CouplingInertia PerLayer
	Power           PerLayer
	Threshold       PerLayer // effective (static or dynamic) threshold used
	Critical        [layer.Count]bool
	Dominant        layer.Layer
	Leap            LeapKind
	LeapLayer       layer.Layer // layer whose leap classified Leap; None if no leap
}

// NewState returns a state with designer-chosen initial energies and all
// inertias at 1, the reference initial value.
func NewState() *State {
	s := &State{Dominant: layer.None}
	s.Last.Dominant = layer.None
	s.Last.LeapLayer = layer.None
	for i := range s.Inertia {
		s.Inertia[i] = 1.0
	}
	return s
}

// TotalEnergy sums the structural layers and the direct pool.
func (s *State) TotalEnergy() float64 {
	t := s.Direct
	for _, e := range s.Energy {
		t += e
	}
	return t
}

// EnergyDistribution returns each pool's share of the total, zero when the
// state carries no energy at all.
func (s *State) EnergyDistribution() (layers PerLayer, direct float64) {
	total := s.TotalEnergy()
	if total == 0 {
		return layers, 0
	}
	for i, e := range s.Energy {
		layers[i] = e / total
	}
	return layers, s.Direct / total
}

// DominantFrustration returns the layer holding the most unprocessed
// energy. Ties resolve to the first layer in enumeration order.
func (s *State) DominantFrustration() (layer.Layer, float64) {
	best := layer.Physical
	for _, l := range layer.Order[1:] {
		if s.Energy[l] > s.Energy[best] {
			best = l
		}
	}
	return best, s.Energy[best]
}

// StructuralResistance is kappa*R per layer: how hard each layer currently
// is to move.
func (s *State) StructuralResistance(p Params) PerLayer {
	var out PerLayer
	for i := range out {
		out[i] = s.Inertia[i] * p.Resistance[i]
	}
	return out
}

// Partner is a read-only pre-tick snapshot of another agent, paired with
// the relationship scalar in [-1, 1]. Callers must snapshot all agents
// before mutating any of them in the same tick, otherwise coupling becomes
// order-dependent.
type Partner struct {
	Energy   PerLayer
	Inertia  PerLayer
	Relation float64
}

// SnapshotPartner captures the coupling-relevant fields of s.
func SnapshotPartner(s *State, relation float64) Partner {
	return Partner{Energy: s.Energy, Inertia: s.Inertia, Relation: relation}
}
