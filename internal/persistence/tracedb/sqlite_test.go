package tracedb

import (
	"path/filepath"
	"testing"

	"stratadyn.ai/internal/sim/engine"
	"stratadyn.ai/internal/sim/layer"
)

func TestTrace_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "trace.sqlite")

	run := RunInfo{
		RunID:    "run-1",
		Scenario: "baseline",
		Mode:     "stochastic",
		Seed:     42,
		Params:   engine.DefaultParams(),
	}
	tr, err := Open(dbPath, run)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	st := engine.NewState()
	st.Energy[layer.Base] = 120
	st.Direct = 5
	for tick := uint64(1); tick <= 3; tick++ {
		tr.WriteSample(SampleOf(tick, "A1", st))
		tr.WriteSample(SampleOf(tick, "A2", st))
	}
	tr.WriteLeap(LeapEvent{Tick: 2, AgentID: "A1", Kind: "INDUCED", Layer: "BASE", Converted: 144})

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rd, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer rd.Close()

	h, err := rd.Run()
	if err != nil {
		t.Fatalf("run header: %v", err)
	}
	if h.RunID != "run-1" || h.Mode != "stochastic" || h.Seed != 42 {
		t.Fatalf("run header mismatch: %+v", h)
	}
	if h.ParamsRaw == "" {
		t.Fatal("params_json empty")
	}

	agents, err := rd.Agents()
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(agents) != 2 || agents[0] != "A1" || agents[1] != "A2" {
		t.Fatalf("agents = %v", agents)
	}

	traj, err := rd.Trajectory("A1")
	if err != nil {
		t.Fatalf("trajectory: %v", err)
	}
	if len(traj) != 3 {
		t.Fatalf("len(traj) = %d", len(traj))
	}
	for i, s := range traj {
		if s.Tick != uint64(i+1) {
			t.Fatalf("tick order: got %d at %d", s.Tick, i)
		}
		if s.Energy[layer.Base] != 120 || s.Direct != 5 {
			t.Fatalf("sample %d = %+v", i, s)
		}
	}

	leaps, err := rd.Leaps()
	if err != nil {
		t.Fatalf("leaps: %v", err)
	}
	if len(leaps) != 1 || leaps[0].Kind != "INDUCED" || leaps[0].Layer != "BASE" || leaps[0].Converted != 144 {
		t.Fatalf("leaps = %+v", leaps)
	}
}

func TestOpen_RejectsMissingRunID(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(filepath.Join(dir, "trace.sqlite"), RunInfo{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}
