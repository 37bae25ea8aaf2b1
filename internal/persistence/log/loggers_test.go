package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"stratadyn.ai/internal/protocol"
)

func TestTraceLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTraceLogger(dir)

	want := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		Agents: []protocol.AgentTick{
			{AgentID: "A1", Direct: 3.5, Dominant: "NONE", Leap: "NO_LEAP"},
		},
	}
	if err := l.WriteTick(want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "trace", "trace-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("glob: %v matches=%v", err, matches)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	if !sc.Scan() {
		t.Fatalf("no lines: %v", sc.Err())
	}
	var got protocol.TickMsg
	if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Tick != 7 || len(got.Agents) != 1 || got.Agents[0].AgentID != "A1" {
		t.Fatalf("got %+v", got)
	}
	if sc.Scan() {
		t.Fatal("expected exactly one line")
	}
}
