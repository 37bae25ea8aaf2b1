package engine

import (
	"math"
	"testing"

	"stratadyn.ai/internal/sim/layer"
)

func TestLeapProbability_Monotonic(t *testing.T) {
	p := DefaultParams()
	theta := p.Theta[layer.Base]

	atTheta := LeapProbability(p, layer.Base, theta, 1.0)
	baseline := 1.0 - math.Exp(-p.HazardBase*1.0)
	if math.Abs(atTheta-baseline) > 1e-12 {
		t.Fatalf("P at threshold = %g, want baseline %g", atTheta, baseline)
	}

	prev := atTheta
	for _, eps := range []float64{1, 10, 50, 100, 149} {
		got := LeapProbability(p, layer.Base, theta-eps, 1.0)
		if got <= prev {
			t.Fatalf("P(theta-%g)=%g not greater than %g", eps, got, prev)
		}
		prev = got
	}

	// The baseline hazard never vanishes, even far above threshold.
	if got := LeapProbability(p, layer.Base, theta*100, 1.0); got <= 0 {
		t.Fatalf("P above threshold = %g, want > 0", got)
	}
}

func TestStochastic_InducedLeap(t *testing.T) {
	p := quietParams()
	e := mustEngine(t, Config{Params: p, Mode: ModeStochastic, Seed: 1})
	s := NewState()
	// Base is deep below threshold: hazard is astronomically above baseline.
	s.Energy = PerLayer{
		layer.Physical: 300,
		layer.Base:     10,
		layer.Core:     200,
		layer.Upper:    150,
	}
	var in Input
	in.Pressure[layer.Base] = VecScalar(5)
	in.Dt = 1.0

	diag, err := e.Step(s, in)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if diag.Leap != LeapInduced {
		t.Fatalf("leap kind = %s, want INDUCED", diag.Leap)
	}
	if diag.LeapLayer != layer.Base {
		t.Fatalf("leap layer = %s, want BASE", diag.LeapLayer)
	}
}

func TestStochastic_SpontaneousLeap(t *testing.T) {
	p := quietParams()
	p.HazardBase = 1000 // forces the baseline draw to fire
	e := mustEngine(t, Config{Params: p, Mode: ModeStochastic, Seed: 1})
	s := NewState()
	s.Energy = PerLayer{
		layer.Physical: 300,
		layer.Base:     200,
		layer.Core:     200,
		layer.Upper:    150,
	}
	var in Input
	in.Pressure[layer.Base] = VecScalar(5)
	in.Dt = 1.0

	diag, err := e.Step(s, in)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if diag.Leap != LeapSpontaneous {
		t.Fatalf("leap kind = %s, want SPONTANEOUS", diag.Leap)
	}
	if diag.LeapLayer != layer.Base {
		t.Fatalf("leap layer = %s, want BASE", diag.LeapLayer)
	}
	if diag.Critical[layer.Base] {
		t.Fatalf("base flagged critical at energy above threshold")
	}
}

func TestIntegrated_DominantFullCoCriticalPartial(t *testing.T) {
	p := quietParams()
	p.GammaToDirect[layer.Base] = 0.08
	p.GammaToDirect[layer.Core] = 0.05
	e := mustEngine(t, Config{Params: p, Mode: ModeIntegrated})

	s := NewState()
	s.Energy = PerLayer{
		layer.Physical: 500,
		layer.Base:     100, // critical, ties on power resolve to Base first
		layer.Core:     50,  // critical
		layer.Upper:    500,
	}

	diag, err := e.Step(s, Input{Dt: 1.0})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if diag.Dominant != layer.Base {
		t.Fatalf("dominant = %s, want BASE", diag.Dominant)
	}
	// Dominant gets the full multiplier: 0.08 * 15 * 100 = 120.
	if got := diag.ConvToDirect[layer.Base]; math.Abs(got-120.0) > 1e-9 {
		t.Fatalf("dominant conversion = %g, want 120", got)
	}
	// Co-critical gets the partial one: 0.05 * (1 + 10*0.5) * 50 = 15.
	if got := diag.ConvToDirect[layer.Core]; math.Abs(got-15.0) > 1e-9 {
		t.Fatalf("co-critical conversion = %g, want 15", got)
	}
}

func TestIntegrated_DynamicThetaFloor(t *testing.T) {
	p := quietParams()
	p.ThetaSensitivity = 1.0
	e := mustEngine(t, Config{Params: p, Mode: ModeIntegrated})

	s := NewState()
	s.Energy[layer.Base] = 1000 // huge power, far from critical
	var in Input
	in.Pressure[layer.Base] = VecScalar(10)
	in.Dt = 1.0

	diag, err := e.Step(s, in)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	floor := 0.3 * p.Theta[layer.Base]
	if got := diag.Threshold[layer.Base]; math.Abs(got-floor) > 1e-9 {
		t.Fatalf("dynamic theta = %g, want floor %g", got, floor)
	}
}

func TestIntegrated_NoCriticalNoLeap(t *testing.T) {
	e := mustEngine(t, Config{Params: quietParams(), Mode: ModeIntegrated})
	s := NewState()
	s.Energy = PerLayer{500, 500, 500, 500}

	diag, err := e.Step(s, Input{Dt: 1.0})
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if diag.Dominant != layer.None || diag.Leap != LeapNone {
		t.Fatalf("dominant=%s leap=%s, want NONE/NO_LEAP", diag.Dominant, diag.Leap)
	}
	if s.Dominant != layer.None {
		t.Fatalf("state dominant = %s, want NONE", s.Dominant)
	}
}
