// Package society steps a population of layered-state agents tick by tick.
// Social coupling reads a consistent snapshot of every agent taken before
// any agent is mutated, so a tick's outcome does not depend on agent order
// or on how many workers execute it.
package society

import (
	"fmt"
	"sync"

	"stratadyn.ai/internal/sim/engine"
	"stratadyn.ai/internal/sim/layer"
)

type Config struct {
	Params engine.Params
	Mode   engine.Mode
	// Seed is the society master seed; each agent's engine gets a stream
	// derived from it and the agent's join index.
	Seed int64
	// Workers bounds the per-tick stepping pool. <=1 means serial.
	Workers int
}

// Stimulus is one agent's external input for a tick. Agents without a
// stimulus entry receive zero pressure.
type Stimulus struct {
	Pressure    [layer.Count]engine.Vec3
	DirectForce engine.Vec3
}

// Agent pairs an identifier with its exclusively-owned state and engine.
type Agent struct {
	ID    string
	State *engine.State

	eng *engine.Engine
}

func (a *Agent) Engine() *engine.Engine { return a.eng }

type TickResult struct {
	AgentID string
	Diag    engine.Diagnostics
}

type Society struct {
	cfg    Config
	agents []*Agent
	index  map[string]int

	// relations[i][j] is the symmetric relationship scalar in [-1, 1];
	// the diagonal is unused.
	relations map[[2]int]float64

	tick uint64
}

func New(cfg Config) (*Society, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("society params: %w", err)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("negative worker count %d", cfg.Workers)
	}
	return &Society{
		cfg:       cfg,
		index:     map[string]int{},
		relations: map[[2]int]float64{},
	}, nil
}

func (s *Society) Tick() uint64 { return s.tick }

// Len counts live agents.
func (s *Society) Len() int {
	n := 0
	for _, a := range s.agents {
		if a != nil {
			n++
		}
	}
	return n
}

// Agents returns the live agents in join order.
func (s *Society) Agents() []*Agent {
	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (s *Society) Agent(id string) (*Agent, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.agents[i], true
}

// AddAgent registers an agent with a designer-chosen initial state. The
// agent's RNG stream is derived from the master seed and the join order, so
// a population built in the same order replays identically.
func (s *Society) AddAgent(id string, initial *engine.State) (*Agent, error) {
	if id == "" {
		return nil, fmt.Errorf("empty agent id")
	}
	if _, ok := s.index[id]; ok {
		return nil, fmt.Errorf("agent %q already exists", id)
	}
	if initial == nil {
		initial = engine.NewState()
	}
	eng, err := engine.New(engine.Config{
		Params: s.cfg.Params,
		Mode:   s.cfg.Mode,
		Seed:   agentSeed(s.cfg.Seed, len(s.agents)),
	})
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", id, err)
	}
	a := &Agent{ID: id, State: initial, eng: eng}
	s.index[id] = len(s.agents)
	s.agents = append(s.agents, a)
	return a, nil
}

// RemoveAgent drops an agent and its state; no other component retains a
// reference. Join indexes of remaining agents are preserved so their RNG
// streams continue unchanged.
func (s *Society) RemoveAgent(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.agents[i] = nil
	delete(s.index, id)
	return true
}

// SetRelation stores the symmetric relationship scalar between two agents.
func (s *Society) SetRelation(a, b string, rel float64) error {
	ia, ok := s.index[a]
	if !ok {
		return fmt.Errorf("unknown agent %q", a)
	}
	ib, ok := s.index[b]
	if !ok {
		return fmt.Errorf("unknown agent %q", b)
	}
	if ia == ib {
		return fmt.Errorf("agent %q cannot relate to itself", a)
	}
	if rel < -1 || rel > 1 {
		return fmt.Errorf("relation %g outside [-1, 1]", rel)
	}
	s.relations[relKey(ia, ib)] = rel
	return nil
}

func (s *Society) Relation(a, b string) float64 {
	ia, oka := s.index[a]
	ib, okb := s.index[b]
	if !oka || !okb || ia == ib {
		return 0
	}
	return s.relations[relKey(ia, ib)]
}

func relKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func agentSeed(master int64, index int) int64 {
	// Golden-ratio stream separation; enough to decorrelate per-agent RNGs
	// while staying reproducible.
	return master ^ int64((uint64(index)+1)*0x9E3779B97F4A7C15)
}

// Step advances every live agent by dt. All partner snapshots are taken
// before any state mutates; agents are then stepped, across a worker pool
// when configured. Results are ordered by join order regardless of worker
// scheduling.
func (s *Society) Step(stimuli map[string]Stimulus, dt float64) ([]TickResult, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("tick dt must be positive, got %g", dt)
	}

	type job struct {
		agent    *Agent
		in       engine.Input
		resultAt int
	}

	// Snapshot phase.
	var jobs []job
	for i, a := range s.agents {
		if a == nil {
			continue
		}
		in := engine.Input{Dt: dt}
		if st, ok := stimuli[a.ID]; ok {
			in.Pressure = st.Pressure
			in.DirectForce = st.DirectForce
		}
		for j, other := range s.agents {
			if other == nil || j == i {
				continue
			}
			rel := s.relations[relKey(i, j)]
			if rel == 0 {
				continue
			}
			in.Partners = append(in.Partners, engine.SnapshotPartner(other.State, rel))
		}
		jobs = append(jobs, job{agent: a, in: in, resultAt: len(jobs)})
	}

	results := make([]TickResult, len(jobs))
	errs := make([]error, len(jobs))

	run := func(j job) {
		diag, err := j.agent.eng.Step(j.agent.State, j.in)
		results[j.resultAt] = TickResult{AgentID: j.agent.ID, Diag: diag}
		errs[j.resultAt] = err
	}

	if s.cfg.Workers > 1 && len(jobs) > 1 {
		ch := make(chan job)
		var wg sync.WaitGroup
		workers := s.cfg.Workers
		if workers > len(jobs) {
			workers = len(jobs)
		}
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range ch {
					run(j)
				}
			}()
		}
		for _, j := range jobs {
			ch <- j
		}
		close(ch)
		wg.Wait()
	} else {
		for _, j := range jobs {
			run(j)
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", s.tick, err)
		}
	}
	s.tick++
	return results, nil
}
