// Package tracedb keeps a queryable SQLite index of run trajectories. The
// JSONL trace log remains the source of truth; this index exists so replay
// and analysis tooling can query without scanning the full log.
package tracedb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stratadyn.ai/internal/sim/engine"
	"stratadyn.ai/internal/sim/layer"
)

type Trace struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqSample reqKind = iota + 1
	reqLeap
)

type req struct {
	kind   reqKind
	sample Sample
	leap   LeapEvent
}

// Sample is one agent's post-step row.
type Sample struct {
	Tick    uint64
	AgentID string

	Energy  engine.PerLayer
	Direct  float64
	Inertia engine.PerLayer
	Power   engine.PerLayer

	Critical  []string
	Dominant  string
	Leap      string
	LeapLayer string
}

// LeapEvent is recorded once per fired leap, separate from samples so leap
// history stays cheap to query across long runs.
type LeapEvent struct {
	Tick      uint64
	AgentID   string
	Kind      string
	Layer     string
	Converted float64
}

// RunInfo stamps the run the trace belongs to.
type RunInfo struct {
	RunID    string
	Scenario string
	Mode     string
	Seed     int64
	Params   engine.Params
}

func Open(path string, run RunInfo) (*Trace, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if run.RunID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := recordRun(db, run); err != nil {
		_ = db.Close()
		return nil, err
	}

	t := &Trace{
		db: db,
		// High buffer: a big society emits one sample per agent per tick.
		ch: make(chan req, 65536),
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.loop()
	}()
	return t, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL is fine for a
	// secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			mode TEXT NOT NULL,
			seed INTEGER NOT NULL,
			params_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS samples (
			tick INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			e_physical REAL NOT NULL,
			e_base REAL NOT NULL,
			e_core REAL NOT NULL,
			e_upper REAL NOT NULL,
			direct REAL NOT NULL,
			k_physical REAL NOT NULL,
			k_base REAL NOT NULL,
			k_core REAL NOT NULL,
			k_upper REAL NOT NULL,
			critical TEXT NOT NULL,
			dominant TEXT NOT NULL,
			leap TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, agent_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_samples_agent_tick ON samples(agent_id, tick);`,
		`CREATE TABLE IF NOT EXISTS leaps (
			tick INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			layer TEXT NOT NULL,
			converted REAL NOT NULL,
			PRIMARY KEY (tick, agent_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leaps_agent ON leaps(agent_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func recordRun(db *sql.DB, run RunInfo) error {
	b, err := json.Marshal(run.Params)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT OR REPLACE INTO runs(run_id,scenario,mode,seed,params_json,started_at) VALUES(?,?,?,?,?,?)`,
		run.RunID, run.Scenario, run.Mode, run.Seed, string(b),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (t *Trace) Close() error {
	var err error
	t.once.Do(func() {
		t.closed.Store(true)
		close(t.ch)
		t.wg.Wait()
		err = t.db.Close()
	})
	return err
}

// WriteSample queues one agent row. Drops when the indexer falls behind;
// the JSONL trace keeps the full record.
func (t *Trace) WriteSample(s Sample) {
	if t == nil || t.closed.Load() {
		return
	}
	select {
	case t.ch <- req{kind: reqSample, sample: s}:
	default:
	}
}

func (t *Trace) WriteLeap(l LeapEvent) {
	if t == nil || t.closed.Load() {
		return
	}
	select {
	case t.ch <- req{kind: reqLeap, leap: l}:
	default:
	}
}

// SampleOf builds a Sample row from a post-step agent state.
func SampleOf(tick uint64, agentID string, s *engine.State) Sample {
	row := Sample{
		Tick:    tick,
		AgentID: agentID,
		Energy:  s.Energy,
		Direct:  s.Direct,
		Inertia: s.Inertia,
		Power:   s.Last.Power,
		Leap:    s.Leap.String(),
	}
	row.Dominant = s.Dominant.String()
	for _, l := range layer.Order {
		if s.Critical[l] {
			row.Critical = append(row.Critical, l.String())
		}
	}
	if s.Last.LeapLayer != layer.None {
		row.LeapLayer = s.Last.LeapLayer.String()
	}
	return row
}

func (t *Trace) loop() {
	insertSample, _ := t.db.Prepare(`INSERT OR REPLACE INTO samples
		(tick,agent_id,e_physical,e_base,e_core,e_upper,direct,
		 k_physical,k_base,k_core,k_upper,critical,dominant,leap,raw_json)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertLeap, _ := t.db.Prepare(`INSERT OR REPLACE INTO leaps(tick,agent_id,kind,layer,converted) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertSample != nil {
			_ = insertSample.Close()
		}
		if insertLeap != nil {
			_ = insertLeap.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := t.db.Begin()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
	}

	for r := range t.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSample:
			if insertSample == nil {
				continue
			}
			s := r.sample
			raw, _ := json.Marshal(s)
			if _, err := tx.Stmt(insertSample).Exec(
				int64(s.Tick), s.AgentID,
				s.Energy[layer.Physical], s.Energy[layer.Base], s.Energy[layer.Core], s.Energy[layer.Upper],
				s.Direct,
				s.Inertia[layer.Physical], s.Inertia[layer.Base], s.Inertia[layer.Core], s.Inertia[layer.Upper],
				strings.Join(s.Critical, ","), s.Dominant, s.Leap,
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqLeap:
			if insertLeap == nil {
				continue
			}
			l := r.leap
			if _, err := tx.Stmt(insertLeap).Exec(int64(l.Tick), l.AgentID, l.Kind, l.Layer, l.Converted); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}
