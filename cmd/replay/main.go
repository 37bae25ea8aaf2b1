// Command replay inspects a recorded run's trace index and optionally
// verifies it by re-running the scenario and comparing final states.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"stratadyn.ai/internal/persistence/tracedb"
	"stratadyn.ai/internal/sim/layer"
	"stratadyn.ai/internal/sim/tuning"
)

func main() {
	var (
		dbPath       = flag.String("trace", "", "path to trace.sqlite")
		agentID      = flag.String("agent", "", "print this agent's trajectory")
		scenarioPath = flag.String("scenario", "", "re-run this scenario and verify final states against the trace")
		tuningPath   = flag.String("tuning", "", "tuning.yaml for verification (optional)")
	)
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "missing -trace")
		os.Exit(2)
	}

	rd, err := tracedb.OpenReader(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open trace:", err)
		os.Exit(1)
	}
	defer rd.Close()

	h, err := rd.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "read run:", err)
		os.Exit(1)
	}
	fmt.Printf("run=%s scenario=%q mode=%s seed=%d started=%s\n",
		h.RunID, h.Scenario, h.Mode, h.Seed, h.StartedAt)

	leaps, err := rd.Leaps()
	if err != nil {
		fmt.Fprintln(os.Stderr, "read leaps:", err)
		os.Exit(1)
	}
	fmt.Printf("leaps=%d\n", len(leaps))
	for _, l := range leaps {
		fmt.Printf("  tick=%d agent=%s %s %s converted=%.3f\n", l.Tick, l.AgentID, l.Kind, l.Layer, l.Converted)
	}

	if *agentID != "" {
		printTrajectory(rd, *agentID)
	}

	if *scenarioPath != "" {
		if err := verify(rd, *scenarioPath, *tuningPath); err != nil {
			fmt.Fprintln(os.Stderr, "verify:", err)
			os.Exit(1)
		}
		fmt.Println("verify ok")
	}
}

func printTrajectory(rd *tracedb.Reader, agentID string) {
	traj, err := rd.Trajectory(agentID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "trajectory:", err)
		os.Exit(1)
	}
	for _, s := range traj {
		parts := make([]string, 0, layer.Count)
		for _, l := range layer.Order {
			parts = append(parts, fmt.Sprintf("%s=%.3f", l, s.Energy[l]))
		}
		fmt.Printf("tick=%d %s direct=%.3f dominant=%s leap=%s\n",
			s.Tick, strings.Join(parts, " "), s.Direct, s.Dominant, s.Leap)
	}
}

// verify re-runs the scenario and checks every agent's final energies and
// direct pool against the last recorded sample. The run is deterministic,
// so any drift beyond float noise means the trace and the code disagree.
func verify(rd *tracedb.Reader, scenarioPath, tuningPath string) error {
	var tune tuning.Tuning
	if tuningPath != "" {
		var err error
		tune, err = tuning.Load(tuningPath)
		if err != nil {
			return err
		}
	}
	params, err := tune.Params()
	if err != nil {
		return err
	}
	sc, err := tuning.LoadScenario(scenarioPath)
	if err != nil {
		return err
	}
	h, err := rd.Run()
	if err != nil {
		return err
	}
	sc.Seed = h.Seed

	soc, err := sc.Build(params)
	if err != nil {
		return err
	}
	for i := 0; i < sc.Ticks; i++ {
		if _, err := soc.Step(sc.StimuliAt(soc.Tick()), sc.Dt); err != nil {
			return err
		}
	}

	const eps = 1e-9
	for _, a := range soc.Agents() {
		traj, err := rd.Trajectory(a.ID)
		if err != nil {
			return err
		}
		if len(traj) == 0 {
			return fmt.Errorf("agent %s: no samples in trace", a.ID)
		}
		last := traj[len(traj)-1]
		for _, l := range layer.Order {
			if math.Abs(last.Energy[l]-a.State.Energy[l]) > eps {
				return fmt.Errorf("agent %s %s energy: trace=%.12f rerun=%.12f",
					a.ID, l, last.Energy[l], a.State.Energy[l])
			}
		}
		if math.Abs(last.Direct-a.State.Direct) > eps {
			return fmt.Errorf("agent %s direct: trace=%.12f rerun=%.12f",
				a.ID, last.Direct, a.State.Direct)
		}
	}
	return nil
}
