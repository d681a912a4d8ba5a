// gateserver runs the standalone relay: it listens for OSC gate requests on
// UDP, drives the execution backend, and returns measurement responses to a
// fixed reply address.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spinwave-labs/gatelink/internal/backend/sim"
	"github.com/spinwave-labs/gatelink/internal/config"
	"github.com/spinwave-labs/gatelink/internal/relay"
	"github.com/spinwave-labs/gatelink/internal/storage/sqlite"
)

var (
	configPath = flag.String("config", "", "Path to JSON config file")
	listen     = flag.String("listen", "", "UDP listen address for requests")
	reply      = flag.String("reply", "", "UDP destination address for responses")
	grid       = flag.String("grid", "", "Qubit grid size as WxH")
	seed       = flag.Int64("seed", 0, "Simulation backend seed")
	dbPath     = flag.String("db", "", "Measurement log database path (empty disables)")
	queueLen   = flag.Int("queue", 0, "Channel queue capacity")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlagOverrides(cfg)

	gridW, gridH := *cfg.GridW, *cfg.GridH
	backend := sim.New(gridH, *cfg.Seed)

	var recorder relay.MeasurementRecorder
	if *cfg.DBPath != "" {
		store, err := sqlite.Open(*cfg.DBPath)
		if err != nil {
			log.Fatalf("failed to open measurement log: %v", err)
		}
		defer store.Close()

		session, err := store.BeginSession(gridW, gridH, *cfg.Seed)
		if err != nil {
			log.Fatalf("failed to begin measurement session: %v", err)
		}
		log.Printf("recording measurements to %s (session %s)", *cfg.DBPath, session.ID)
		recorder = session
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("gateserver: %dx%d grid, seed %d, listening on %s, replying to %s",
		gridW, gridH, *cfg.Seed, *cfg.ListenAddr, *cfg.ReplyAddr)

	err = relay.Run(ctx, relay.PipelineConfig{
		ListenAddr:   *cfg.ListenAddr,
		ReplyAddr:    *cfg.ReplyAddr,
		Backend:      backend,
		Recorder:     recorder,
		QueueLen:     *cfg.QueueLen,
		PacketBufLen: *cfg.PacketBufLen,
		RcvBuf:       *cfg.RcvBuf,
		ReadDeadline: cfg.ReadDeadlineDuration(),
		LogInterval:  cfg.LogIntervalDuration(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("relay terminated: %v", err)
	}
	log.Print("gateserver: shut down")
}

// applyFlagOverrides overlays explicitly-set flags onto the file config.
func applyFlagOverrides(cfg *config.RelayConfig) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["listen"] {
		cfg.ListenAddr = listen
	}
	if set["reply"] {
		cfg.ReplyAddr = reply
	}
	if set["seed"] {
		cfg.Seed = seed
	}
	if set["db"] {
		cfg.DBPath = dbPath
	}
	if set["queue"] {
		cfg.QueueLen = queueLen
	}
	if set["grid"] {
		w, h, err := parseGrid(*grid)
		if err != nil {
			log.Fatalf("invalid -grid: %v", err)
		}
		cfg.GridW = &w
		cfg.GridH = &h
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
}

func parseGrid(s string) (w, h int, err error) {
	n, err := fmt.Sscanf(s, "%dx%d", &w, &h)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("grid dimensions must be positive, got %dx%d", w, h)
	}
	return w, h, nil
}

// usage override keeps -h output tidy for operators.
func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nRelay OSC gate requests on UDP to a local simulation backend.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
}
