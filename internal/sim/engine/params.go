package engine

import (
	"fmt"

	"stratadyn.ai/internal/sim/layer"
)

// PerLayer holds one coefficient per structural layer, indexed by layer.Layer.
type PerLayer [layer.Count]float64

// Params is the full per-layer coefficient set of one agent type. It is
// read-mostly: many agents may share one Params value, so the engine treats
// it as immutable during Step and never writes amplified rates back into it.
type Params struct {
	// Production gain per layer and for the direct action pool.
	Alpha       PerLayer
	AlphaDirect float64

	// Conversion rates between layer energy and the direct action pool.
	GammaToDirect   PerLayer
	GammaFromDirect PerLayer

	// Critical thresholds and energy decay.
	Theta PerLayer
	Beta  PerLayer

	// Inertia learning: gain, reaction damping, relaxation, floor.
	Eta      PerLayer
	Rho      PerLayer
	Lambda   PerLayer
	KappaMin PerLayer

	// Structural resistance R. Immutable ordering Physical > Base > Core > Upper.
	Resistance PerLayer

	// Phase-transition amplification. The dominant critical layer gets the
	// full multiplier; co-critical layers get 1 + M*CoCriticalFraction.
	Multiplier         PerLayer
	CoCriticalFraction float64

	// Dynamic threshold sensitivity, 0..1. Used by the integrated detector.
	ThetaSensitivity float64

	// Stochastic leap hazard: baseline rate and exponential sensitivity.
	HazardBase        float64
	HazardSensitivity float64

	// Directed interlayer transfer coefficients, indexed like TransferPairs.
	// Negative values inhibit, positive values erode/reinforce.
	GammaTransfer    [TransferCount]float64
	TransferStrength float64

	// Social coupling: energy propagation, inertia propagation, competitive
	// suppression, the neutral band half-width, and the global strength.
	Zeta                 PerLayer
	Xi                   PerLayer
	Omega                PerLayer
	CooperationThreshold float64
	CouplingStrength     float64

	// Optional finite pool feeding amplified production. Amplification is
	// off at factor 1.
	ReservoirCapacity   float64
	AmplificationFactor float64
}

// DefaultParams returns the reference four-layer coefficient set.
func DefaultParams() Params {
	return Params{
		Alpha:       PerLayer{1.0, 1.0, 1.0, 1.0},
		AlphaDirect: 1.0,

		GammaToDirect:   PerLayer{0.15, 0.08, 0.05, 0.03},
		GammaFromDirect: PerLayer{0.01, 0.03, 0.02, 0.04},

		Theta: PerLayer{200.0, 150.0, 100.0, 80.0},
		Beta:  PerLayer{0.001, 0.005, 0.01, 0.02},

		Eta:      PerLayer{0.9, 0.8, 0.5, 0.3},
		Rho:      PerLayer{0.1, 0.1, 0.1, 0.1},
		Lambda:   PerLayer{0.05, 0.05, 0.05, 0.05},
		KappaMin: PerLayer{0.9, 0.8, 0.5, 0.3},

		Resistance: PerLayer{1000.0, 100.0, 10.0, 1.0},

		Multiplier:         PerLayer{20.0, 15.0, 10.0, 8.0},
		CoCriticalFraction: 0.5,

		ThetaSensitivity: 0.3,

		HazardBase:        0.01,
		HazardSensitivity: 10.0,

		GammaTransfer: [TransferCount]float64{
			-0.04, // Upper -> Base: ideals inhibit instinct
			0.03,  // Upper -> Core
			0.05,  // Base -> Upper
			-0.02, // Base -> Core
			0.04,  // Core -> Base
			0.02,  // Core -> Upper
			0.06,  // Physical -> Base
			0.03,  // Physical -> Upper
		},
		TransferStrength: 1.0,

		Zeta:                 PerLayer{0.02, 0.08, 0.05, 0.03},
		Xi:                   PerLayer{0.01, 0.04, 0.06, 0.05},
		Omega:                PerLayer{-0.01, -0.06, -0.03, -0.02},
		CooperationThreshold: 0.5,
		CouplingStrength:     1.0,

		ReservoirCapacity:   1000.0,
		AmplificationFactor: 1.0,
	}
}

// Validate fails fast on configuration that would corrupt a simulation
// mid-run. Running with an invalid Params is the only irrecoverable error
// in the engine, so it is caught at construction time.
func (p Params) Validate() error {
	for _, l := range layer.Order {
		if p.Resistance[l] <= 0 {
			return fmt.Errorf("layer %s: resistance must be positive, got %g", l, p.Resistance[l])
		}
		if p.Theta[l] < 0 {
			return fmt.Errorf("layer %s: negative critical threshold %g", l, p.Theta[l])
		}
		if p.KappaMin[l] < 0 {
			return fmt.Errorf("layer %s: negative inertia floor %g", l, p.KappaMin[l])
		}
		if p.Beta[l] < 0 {
			return fmt.Errorf("layer %s: negative decay rate %g", l, p.Beta[l])
		}
		if p.Multiplier[l] < 1 {
			return fmt.Errorf("layer %s: leap multiplier %g < 1", l, p.Multiplier[l])
		}
	}
	for i := 1; i < layer.Count; i++ {
		if p.Resistance[i] >= p.Resistance[i-1] {
			return fmt.Errorf("resistance must strictly decrease from %s to %s",
				layer.Layer(i-1), layer.Layer(i))
		}
	}
	if p.ThetaSensitivity < 0 || p.ThetaSensitivity > 1 {
		return fmt.Errorf("theta sensitivity %g outside [0,1]", p.ThetaSensitivity)
	}
	if p.CoCriticalFraction < 0 {
		return fmt.Errorf("negative co-critical fraction %g", p.CoCriticalFraction)
	}
	if p.HazardBase <= 0 {
		return fmt.Errorf("hazard base must be positive, got %g", p.HazardBase)
	}
	if p.HazardSensitivity <= 0 {
		return fmt.Errorf("hazard sensitivity must be positive, got %g", p.HazardSensitivity)
	}
	if p.CooperationThreshold < 0 || p.CooperationThreshold > 1 {
		return fmt.Errorf("cooperation threshold %g outside [0,1]", p.CooperationThreshold)
	}
	if p.ReservoirCapacity < 0 {
		return fmt.Errorf("negative reservoir capacity %g", p.ReservoirCapacity)
	}
	if p.AmplificationFactor < 1 {
		return fmt.Errorf("amplification factor %g < 1", p.AmplificationFactor)
	}
	return nil
}
