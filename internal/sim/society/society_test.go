package society

import (
	"fmt"
	"testing"

	"stratadyn.ai/internal/sim/engine"
	"stratadyn.ai/internal/sim/layer"
)

func build(t *testing.T, workers int) *Society {
	t.Helper()
	soc, err := New(Config{
		Params:  engine.DefaultParams(),
		Mode:    engine.ModeStochastic,
		Seed:    42,
		Workers: workers,
	})
	if err != nil {
		t.Fatalf("new society: %v", err)
	}
	for i := 0; i < 4; i++ {
		st := engine.NewState()
		st.Energy = engine.PerLayer{100, 80 + float64(i)*20, 60, 40}
		if _, err := soc.AddAgent(fmt.Sprintf("A%d", i+1), st); err != nil {
			t.Fatalf("add agent: %v", err)
		}
	}
	if err := soc.SetRelation("A1", "A2", 0.8); err != nil {
		t.Fatalf("set relation: %v", err)
	}
	if err := soc.SetRelation("A1", "A3", -0.9); err != nil {
		t.Fatalf("set relation: %v", err)
	}
	return soc
}

func runTicks(t *testing.T, soc *Society, ticks int) []engine.PerLayer {
	t.Helper()
	for tick := 0; tick < ticks; tick++ {
		stimuli := map[string]Stimulus{}
		for i, a := range soc.Agents() {
			var st Stimulus
			st.Pressure[layer.Base] = engine.VecScalar(float64((tick + i) % 5))
			stimuli[a.ID] = st
		}
		if _, err := soc.Step(stimuli, 1.0); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
	var out []engine.PerLayer
	for _, a := range soc.Agents() {
		out = append(out, a.State.Energy)
	}
	return out
}

func TestSociety_DeterministicAcrossRuns(t *testing.T) {
	r1 := runTicks(t, build(t, 1), 50)
	r2 := runTicks(t, build(t, 1), 50)
	for i := range r1 {
		if r1[i] != r2[i] {
			t.Fatalf("agent %d diverged: %v vs %v", i, r1[i], r2[i])
		}
	}
}

func TestSociety_WorkersMatchSerial(t *testing.T) {
	serial := runTicks(t, build(t, 1), 50)
	parallel := runTicks(t, build(t, 4), 50)
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("agent %d: parallel run diverged: %v vs %v", i, serial[i], parallel[i])
		}
	}
}

func TestSociety_SnapshotCoupling(t *testing.T) {
	// Both agents of a cooperative pair must see the same pre-tick states:
	// the energy deltas they exchange in one tick are equal and opposite.
	// If the second agent stepped against the first one's mutated state the
	// symmetry would break.
	p := engine.DefaultParams()
	p.GammaToDirect = engine.PerLayer{}
	p.GammaFromDirect = engine.PerLayer{}
	p.Beta = engine.PerLayer{}
	p.GammaTransfer = [engine.TransferCount]float64{}

	soc, err := New(Config{Params: p, Mode: engine.ModeStatic, Seed: 1})
	if err != nil {
		t.Fatalf("new society: %v", err)
	}
	sa := engine.NewState()
	sa.Energy = engine.PerLayer{10, 10, 10, 10}
	sb := engine.NewState()
	sb.Energy = engine.PerLayer{90, 90, 90, 90}
	if _, err := soc.AddAgent("A", sa); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := soc.AddAgent("B", sb); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := soc.SetRelation("A", "B", 1.0); err != nil {
		t.Fatalf("relation: %v", err)
	}

	results, err := soc.Step(nil, 1.0)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	for _, l := range layer.Order {
		da := results[0].Diag.CouplingEnergy[l]
		db := results[1].Diag.CouplingEnergy[l]
		if da != -db {
			t.Fatalf("layer %s: coupling not antisymmetric: %g vs %g", l, da, db)
		}
		// zeta * (90-10) * 1.0 * 1.0 toward A.
		want := p.Zeta[l] * 80
		if da != want {
			t.Fatalf("layer %s: A delta %g, want %g", l, da, want)
		}
	}
}

func TestSociety_UnknownRelationRejected(t *testing.T) {
	soc := build(t, 1)
	if err := soc.SetRelation("A1", "nope", 0.5); err == nil {
		t.Fatalf("expected error for unknown agent")
	}
	if err := soc.SetRelation("A1", "A2", 1.5); err == nil {
		t.Fatalf("expected error for out-of-range relation")
	}
	if err := soc.SetRelation("A1", "A1", 0.5); err == nil {
		t.Fatalf("expected error for self relation")
	}
}

func TestSociety_RemoveAgent(t *testing.T) {
	soc := build(t, 1)
	if !soc.RemoveAgent("A2") {
		t.Fatalf("remove failed")
	}
	if soc.RemoveAgent("A2") {
		t.Fatalf("double remove succeeded")
	}
	if _, ok := soc.Agent("A2"); ok {
		t.Fatalf("removed agent still addressable")
	}
	// Remaining population still ticks.
	if _, err := soc.Step(nil, 1.0); err != nil {
		t.Fatalf("tick after removal: %v", err)
	}
}

func TestSociety_MissingStimulusIsZeroPressure(t *testing.T) {
	soc := build(t, 1)
	if _, err := soc.Step(map[string]Stimulus{}, 1.0); err != nil {
		t.Fatalf("tick with empty stimuli: %v", err)
	}
	if _, err := soc.Step(nil, 1.0); err != nil {
		t.Fatalf("tick with nil stimuli: %v", err)
	}
}
