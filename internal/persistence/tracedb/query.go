package tracedb

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Reader is a read-only handle for replay and analysis tooling.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only=ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// RunHeader is the runs-table row, params left as raw JSON.
type RunHeader struct {
	RunID     string
	Scenario  string
	Mode      string
	Seed      int64
	ParamsRaw string
	StartedAt string
}

func (r *Reader) Run() (RunHeader, error) {
	var h RunHeader
	row := r.db.QueryRow(`SELECT run_id,scenario,mode,seed,params_json,started_at FROM runs LIMIT 1`)
	err := row.Scan(&h.RunID, &h.Scenario, &h.Mode, &h.Seed, &h.ParamsRaw, &h.StartedAt)
	return h, err
}

func (r *Reader) Agents() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT agent_id FROM samples ORDER BY agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Trajectory returns agentID's samples in tick order, decoded from the raw
// JSON column so the row carries everything WriteSample stored.
func (r *Reader) Trajectory(agentID string) ([]Sample, error) {
	rows, err := r.db.Query(`SELECT raw_json FROM samples WHERE agent_id=? ORDER BY tick`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sample
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var s Sample
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Reader) Leaps() ([]LeapEvent, error) {
	rows, err := r.db.Query(`SELECT tick,agent_id,kind,layer,converted FROM leaps ORDER BY tick,agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeapEvent
	for rows.Next() {
		var l LeapEvent
		var tick int64
		if err := rows.Scan(&tick, &l.AgentID, &l.Kind, &l.Layer, &l.Converted); err != nil {
			return nil, err
		}
		l.Tick = uint64(tick)
		out = append(out, l)
	}
	return out, rows.Err()
}
