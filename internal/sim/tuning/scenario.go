package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stratadyn.ai/internal/sim/engine"
	"stratadyn.ai/internal/sim/layer"
	"stratadyn.ai/internal/sim/society"
)

// AgentSpec declares one agent's initial state. Missing energies default to
// zero, missing inertias to 1.
type AgentSpec struct {
	ID      string             `yaml:"id"`
	Energy  map[string]float64 `yaml:"energy"`
	Direct  float64            `yaml:"direct"`
	Inertia map[string]float64 `yaml:"inertia"`
}

type RelationSpec struct {
	A     string  `yaml:"a"`
	B     string  `yaml:"b"`
	Value float64 `yaml:"value"`
}

// PressureSpec drives one agent's layer with a constant scalar pressure over
// a tick window. ToTick is exclusive; zero means "until the end".
type PressureSpec struct {
	Agent    string  `yaml:"agent"`
	Layer    string  `yaml:"layer"`
	FromTick uint64  `yaml:"from_tick"`
	ToTick   uint64  `yaml:"to_tick"`
	Value    float64 `yaml:"value"`
}

type Scenario struct {
	Name    string  `yaml:"name"`
	Mode    string  `yaml:"mode"`
	Seed    int64   `yaml:"seed"`
	Ticks   int     `yaml:"ticks"`
	Dt      float64 `yaml:"dt"`
	Workers int     `yaml:"workers"`

	Agents    []AgentSpec    `yaml:"agents"`
	Relations []RelationSpec `yaml:"relations"`
	Pressure  []PressureSpec `yaml:"pressure"`
}

func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Dt == 0 {
		sc.Dt = 1.0
	}
	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func (sc Scenario) Validate() error {
	if sc.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive, got %d", sc.Ticks)
	}
	if sc.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", sc.Dt)
	}
	if len(sc.Agents) == 0 {
		return fmt.Errorf("scenario declares no agents")
	}
	if _, err := ParseMode(sc.Mode); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, a := range sc.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		for name := range a.Energy {
			if _, err := layer.Parse(name); err != nil {
				return fmt.Errorf("agent %s energy: %w", a.ID, err)
			}
		}
		for name := range a.Inertia {
			if _, err := layer.Parse(name); err != nil {
				return fmt.Errorf("agent %s inertia: %w", a.ID, err)
			}
		}
	}
	for _, r := range sc.Relations {
		if !seen[r.A] || !seen[r.B] {
			return fmt.Errorf("relation %s-%s references unknown agent", r.A, r.B)
		}
	}
	for _, pr := range sc.Pressure {
		if !seen[pr.Agent] {
			return fmt.Errorf("pressure references unknown agent %q", pr.Agent)
		}
		if _, err := layer.Parse(pr.Layer); err != nil {
			return fmt.Errorf("pressure for %s: %w", pr.Agent, err)
		}
		if pr.ToTick != 0 && pr.ToTick <= pr.FromTick {
			return fmt.Errorf("pressure for %s: empty tick window [%d,%d)", pr.Agent, pr.FromTick, pr.ToTick)
		}
	}
	return nil
}

// Build assembles the society with every agent and relation in place.
func (sc Scenario) Build(params engine.Params) (*society.Society, error) {
	mode, err := ParseMode(sc.Mode)
	if err != nil {
		return nil, err
	}
	soc, err := society.New(society.Config{
		Params:  params,
		Mode:    mode,
		Seed:    sc.Seed,
		Workers: sc.Workers,
	})
	if err != nil {
		return nil, err
	}
	for _, a := range sc.Agents {
		st := engine.NewState()
		st.Direct = a.Direct
		for name, e := range a.Energy {
			l, _ := layer.Parse(name)
			st.Energy[l] = e
		}
		for name, k := range a.Inertia {
			l, _ := layer.Parse(name)
			st.Inertia[l] = k
		}
		if _, err := soc.AddAgent(a.ID, st); err != nil {
			return nil, err
		}
	}
	for _, r := range sc.Relations {
		if err := soc.SetRelation(r.A, r.B, r.Value); err != nil {
			return nil, err
		}
	}
	return soc, nil
}

// StimuliAt evaluates the pressure schedule for one tick.
func (sc Scenario) StimuliAt(tick uint64) map[string]society.Stimulus {
	out := map[string]society.Stimulus{}
	for _, pr := range sc.Pressure {
		if tick < pr.FromTick {
			continue
		}
		if pr.ToTick != 0 && tick >= pr.ToTick {
			continue
		}
		l, _ := layer.Parse(pr.Layer)
		st := out[pr.Agent]
		st.Pressure[l] = engine.VecScalar(pr.Value)
		out[pr.Agent] = st
	}
	return out
}
