package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	persistlog "stratadyn.ai/internal/persistence/log"
	"stratadyn.ai/internal/persistence/tracedb"
	"stratadyn.ai/internal/protocol"
	"stratadyn.ai/internal/sim/engine"
	"stratadyn.ai/internal/sim/layer"
	"stratadyn.ai/internal/sim/society"
	"stratadyn.ai/internal/sim/tuning"
	"stratadyn.ai/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address (empty to disable the observer stream)")
		configDir    = flag.String("configs", "./configs", "config directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		scenarioPath = flag.String("scenario", "", "path to scenario.yaml (default: <configs>/scenario.yaml)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		seed         = flag.Int64("seed", 0, "override the scenario seed (0 keeps the scenario's)")
		ticks        = flag.Int("ticks", 0, "override the scenario tick count (0 keeps the scenario's)")
		tickMS       = flag.Int("tick_ms", 0, "wall-clock pacing per tick in ms (0 runs unpaced)")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite trace index (JSONL trace still written)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[simd] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	sp := strings.TrimSpace(*scenarioPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "scenario.yaml")
	}

	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Tuning{}
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	params, err := tune.Params()
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	sc, err := tuning.LoadScenario(sp)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	if *seed != 0 {
		sc.Seed = *seed
	}
	if *ticks != 0 {
		sc.Ticks = *ticks
	}

	soc, err := sc.Build(params)
	if err != nil {
		logger.Fatalf("build scenario: %v", err)
	}
	mode, _ := tuning.ParseMode(sc.Mode)

	runID := uuid.NewString()
	runDir := filepath.Join(*dataDir, "runs", runID)
	_ = os.MkdirAll(runDir, 0o755)
	logger.Printf("run=%s scenario=%q mode=%s seed=%d agents=%d ticks=%d dt=%g",
		runID, sc.Name, mode, sc.Seed, soc.Len(), sc.Ticks, sc.Dt)

	traceLog := persistlog.NewTraceLogger(runDir)
	defer traceLog.Close()

	var trace *tracedb.Trace
	if !*disableDB {
		trace, err = tracedb.Open(filepath.Join(runDir, "trace.sqlite"), tracedb.RunInfo{
			RunID:    runID,
			Scenario: sc.Name,
			Mode:     mode.String(),
			Seed:     sc.Seed,
			Params:   params,
		})
		if err != nil {
			logger.Fatalf("open trace index: %v", err)
		}
		defer trace.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	var stream *ws.Server
	if strings.TrimSpace(*addr) != "" {
		ids := make([]string, 0, soc.Len())
		for _, a := range soc.Agents() {
			ids = append(ids, a.ID)
		}
		stream = ws.NewServer(protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			RunID:           runID,
			Scenario:        sc.Name,
			Mode:            mode.String(),
			Seed:            sc.Seed,
			Agents:          ids,
			Layers:          layerNames(),
		}, logger)
		defer stream.Close()

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(200)
			_, _ = rw.Write([]byte("ok"))
		})
		mux.HandleFunc("/v1/ws", stream.Handler())

		srv := &http.Server{
			Addr:              *addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(ctx2)
		}()
		go func() {
			logger.Printf("observer stream on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("ListenAndServe: %v", err)
			}
		}()
	}

	if err := run(ctx, logger, soc, sc, traceLog, trace, stream, *tickMS); err != nil {
		logger.Fatalf("run: %v", err)
	}
	logger.Printf("run %s complete at tick %d", runID, soc.Tick())
}

func run(ctx context.Context, logger *log.Logger, soc *society.Society, sc tuning.Scenario,
	traceLog *persistlog.TraceLogger, trace *tracedb.Trace, stream *ws.Server, tickMS int) error {

	var pace *time.Ticker
	if tickMS > 0 {
		pace = time.NewTicker(time.Duration(tickMS) * time.Millisecond)
		defer pace.Stop()
	}

	leaps := 0
	for i := 0; i < sc.Ticks; i++ {
		select {
		case <-ctx.Done():
			logger.Printf("interrupted at tick %d", soc.Tick())
			return nil
		default:
		}

		tick := soc.Tick()
		results, err := soc.Step(sc.StimuliAt(tick), sc.Dt)
		if err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}

		msg := protocol.TickMsg{
			Type:            protocol.TypeTick,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Agents:          make([]protocol.AgentTick, 0, soc.Len()),
		}
		for _, a := range soc.Agents() {
			msg.Agents = append(msg.Agents, ws.AgentTick(a.ID, a.State))
			if trace != nil {
				trace.WriteSample(tracedb.SampleOf(tick, a.ID, a.State))
			}
		}
		for _, r := range results {
			if r.Diag.Leap == engine.LeapNone {
				continue
			}
			leaps++
			converted := 0.0
			for _, c := range r.Diag.ConvToDirect {
				converted += c
			}
			logger.Printf("tick=%d agent=%s leap=%s layer=%s converted=%.3f",
				tick, r.AgentID, r.Diag.Leap, r.Diag.LeapLayer, converted)
			if trace != nil {
				trace.WriteLeap(tracedb.LeapEvent{
					Tick:      tick,
					AgentID:   r.AgentID,
					Kind:      r.Diag.Leap.String(),
					Layer:     r.Diag.LeapLayer.String(),
					Converted: converted,
				})
			}
		}

		if err := traceLog.WriteTick(msg); err != nil {
			logger.Printf("trace write: %v", err)
		}
		if stream != nil {
			stream.Broadcast(msg)
		}

		if pace != nil {
			select {
			case <-ctx.Done():
			case <-pace.C:
			}
		}
	}
	logger.Printf("stepped %d ticks, %d leaps", sc.Ticks, leaps)
	return nil
}

func layerNames() []string {
	out := make([]string, 0, layer.Count)
	for _, l := range layer.Order {
		out = append(out, l.String())
	}
	return out
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
