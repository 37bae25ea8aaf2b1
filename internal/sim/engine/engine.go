// Package engine implements the layered pressure-response energy engine:
// per-layer latent energy, learned inertia, interlayer transfer, social
// coupling, and abrupt phase transitions ("leaps") when a layer goes
// critical. Step is synchronous and single-threaded; its only side effect
// beyond the passed State is advancing the engine-owned RNG.
package engine

import (
	"fmt"
	"math"
	"math/rand"

	"stratadyn.ai/internal/sim/layer"
)

type Config struct {
	Params Params
	Mode   Mode
	// Seed feeds the engine-owned RNG used by the stochastic detector.
	// Two engines with equal seed, params, and inputs produce identical
	// trajectories and leap timing.
	Seed int64
	// Rand overrides the seeded default. The engine takes ownership.
	Rand *rand.Rand
}

// Totals are running sums across all steps of one engine.
type Totals struct {
	ConvToDirect   PerLayer
	ConvFromDirect PerLayer
	Decay          PerLayer
	Time           float64
}

type Engine struct {
	params Params
	mode   Mode
	det    detector
	rng    *rand.Rand

	reservoir float64
	totals    Totals
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("engine params: %w", err)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	e := &Engine{
		params:    cfg.Params,
		mode:      cfg.Mode,
		rng:       rng,
		reservoir: cfg.Params.ReservoirCapacity,
	}
	switch cfg.Mode {
	case ModeStatic:
		e.det = staticDetector{}
	case ModeIntegrated:
		e.det = integratedDetector{}
	case ModeStochastic:
		e.det = &stochasticDetector{rng: rng}
	default:
		return nil, fmt.Errorf("unknown leap mode %d", cfg.Mode)
	}
	return e, nil
}

func (e *Engine) Params() Params { return e.params }
func (e *Engine) Mode() Mode     { return e.mode }
func (e *Engine) Totals() Totals { return e.totals }

// Reservoir reports the remaining amplification pool.
func (e *Engine) Reservoir() float64 { return e.reservoir }

// Input is everything one step consumes besides the state itself. A zero
// pressure vector is the documented default for layers the caller does not
// drive; an empty partner list means no social coupling.
type Input struct {
	Pressure    [layer.Count]Vec3
	DirectForce Vec3
	Partners    []Partner
	Dt          float64
}

// Step advances s by in.Dt and returns the step diagnostics. The shared
// Params is never mutated: amplified conversion rates live only in the
// step-local leap decision.
func (e *Engine) Step(s *State, in Input) (Diagnostics, error) {
	if in.Dt <= 0 {
		return Diagnostics{}, fmt.Errorf("step dt must be positive, got %g", in.Dt)
	}
	p := &e.params
	dt := in.Dt

	// Record inputs and compute reactions: j = kappa * p.
	var pNorm, jNorm PerLayer
	for _, l := range layer.Order {
		s.Pressure[l] = in.Pressure[l]
		s.Reaction[l] = in.Pressure[l].Scale(s.Inertia[l])
		pNorm[l] = s.Pressure[l].Norm()
		jNorm[l] = s.Reaction[l].Norm()
	}
	s.DirectForce = in.DirectForce

	var diag Diagnostics
	diag.Dominant = layer.None
	diag.LeapLayer = layer.None

	// Production: a layer accumulates energy only for the pressure its
	// reaction cannot absorb. Computed before reaction damping.
	for _, l := range layer.Order {
		prod := p.Alpha[l] * math.Max(0, pNorm[l]-jNorm[l])
		prod += e.amplify(prod)
		diag.Production[l] = prod
	}
	diag.DirectProduc = p.AlphaDirect * in.DirectForce.Norm()

	// Reaction damping.
	for _, l := range layer.Order {
		s.Reaction[l] = s.Reaction[l].Scale(1.0 - p.Rho[l])
		jNorm[l] = s.Reaction[l].Norm()
	}

	// Inertia learning: reinforced by absorbed pressure, relaxed toward the
	// floor. No upper bound; callers that need one clamp externally.
	couplingE, couplingK := socialCoupling(p, s, in.Partners)
	diag.CouplingEnergy = couplingE
	diag.CouplingInertia = couplingK
	for _, l := range layer.Order {
		dk := p.Eta[l]*(pNorm[l]*jNorm[l]-p.Rho[l]*jNorm[l]*jNorm[l]) -
			p.Lambda[l]*(s.Inertia[l]-p.KappaMin[l])
		s.Inertia[l] += (dk + couplingK[l]) * dt
		if s.Inertia[l] < p.KappaMin[l] {
			s.Inertia[l] = p.KappaMin[l]
		}
	}

	// Leap detection on the updated inertia.
	diag.Power = structuralPowers(p, s, pNorm)
	dec := e.det.detect(p, s, diag.Power, dt)
	diag.Threshold = dec.threshold
	diag.Critical = dec.critical
	diag.Dominant = dec.dominant
	diag.Leap = dec.kind
	diag.LeapLayer = dec.leapLayer

	// Conversions between layers and the direct pool, using the step-local
	// (possibly amplified) rates.
	var dE PerLayer
	var dDirect float64
	for _, l := range layer.Order {
		toD := dec.gamma[l] * s.Energy[l]
		fromD := p.GammaFromDirect[l] * s.Direct
		decay := p.Beta[l] * s.Energy[l]
		diag.ConvToDirect[l] = toD
		diag.ConvFromDirect[l] = fromD
		diag.Decay[l] = decay
		dE[l] += diag.Production[l] - toD + fromD - decay + couplingE[l]
		dDirect += toD - fromD
	}
	dDirect += diag.DirectProduc

	// Interlayer transfer: pairwise-local conservation independent of the
	// non-conserving terms above.
	diag.Transfer = interlayerTransfers(p, s, &dE)

	// Explicit Euler integration with non-negativity clamps.
	for _, l := range layer.Order {
		diag.Flow[l] = dE[l]
		s.Energy[l] += dE[l] * dt
		if s.Energy[l] < 0 {
			s.Energy[l] = 0
		}
	}
	diag.DirectFlow = dDirect
	s.Direct += dDirect * dt
	if s.Direct < 0 {
		s.Direct = 0
	}

	s.Critical = diag.Critical
	s.Dominant = diag.Dominant
	s.Leap = diag.Leap
	s.Last = diag

	for _, l := range layer.Order {
		e.totals.ConvToDirect[l] += diag.ConvToDirect[l] * dt
		e.totals.ConvFromDirect[l] += diag.ConvFromDirect[l] * dt
		e.totals.Decay[l] += diag.Decay[l] * dt
	}
	e.totals.Time += dt

	return diag, nil
}

// amplify draws the extra production granted by the amplification factor
// from the finite reservoir; once the pool runs dry amplification stops.
func (e *Engine) amplify(production float64) float64 {
	if e.params.AmplificationFactor <= 1.0 || production <= 0 {
		return 0
	}
	extra := production * (e.params.AmplificationFactor - 1.0)
	if e.reservoir < extra {
		return 0
	}
	e.reservoir -= extra
	return extra
}
