// Package relay implements the three-stage asynchronous relay between an OSC
// request stream on UDP and a quantum execution backend: a receiver loop
// decoding inbound datagrams, a runner dispatching typed requests to the
// backend, and a sender loop transmitting measurement responses. The loops
// share nothing but two bounded channels and stop together as a unit.
package relay

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spinwave-labs/gatelink/internal/backend"
	"github.com/spinwave-labs/gatelink/internal/message"
)

const (
	// DefaultQueueLen is the capacity of the request and response channels.
	// Producers block when a channel is full; nothing is dropped.
	DefaultQueueLen = 100

	// DefaultPacketBufLen comfortably holds any message in the vocabulary
	// (the largest, /CX, is under 50 bytes on the wire).
	DefaultPacketBufLen = 1000
)

// PipelineConfig wires a complete relay.
type PipelineConfig struct {
	// ListenAddr is the UDP address for inbound requests.
	ListenAddr string
	// ReplyAddr is the fixed destination for measurement responses.
	ReplyAddr string

	Backend  backend.Backend
	MapQubit backend.QubitMapper
	MapSlot  backend.QubitMapper

	// Recorder, when set, observes every measurement outcome.
	Recorder MeasurementRecorder

	QueueLen      int
	PacketBufLen  int
	RcvBuf        int
	ReadDeadline  time.Duration
	LogInterval   time.Duration
	Stats         *Stats
	SocketFactory UDPSocketFactory
}

// Run operates the relay until ctx is cancelled or any loop fails. All loops
// are torn down together; messages in flight at shutdown are discarded. The
// returned error is ctx.Err() on external cancellation, or the first fatal
// loop error otherwise.
func Run(ctx context.Context, cfg PipelineConfig) error {
	if cfg.QueueLen == 0 {
		cfg.QueueLen = DefaultQueueLen
	}
	if cfg.LogInterval == 0 {
		cfg.LogInterval = time.Minute
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}

	requests := make(chan message.Request, cfg.QueueLen)
	responses := make(chan message.Response, cfg.QueueLen)

	// Dial before spawning anything: a bad destination address should fail
	// startup, not surface later as a loop error.
	sender, err := NewSender(cfg.ReplyAddr, responses, cfg.Stats)
	if err != nil {
		return err
	}
	defer sender.Close()

	receiver := NewReceiver(ReceiverConfig{
		Addr:          cfg.ListenAddr,
		PacketBufLen:  cfg.PacketBufLen,
		RcvBuf:        cfg.RcvBuf,
		ReadDeadline:  cfg.ReadDeadline,
		Stats:         cfg.Stats,
		SocketFactory: cfg.SocketFactory,
	}, requests)

	runner := NewRunner(RunnerConfig{
		Backend:  cfg.Backend,
		MapQubit: cfg.MapQubit,
		MapSlot:  cfg.MapSlot,
		Recorder: cfg.Recorder,
		Stats:    cfg.Stats,
	}, requests, responses)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return receiver.Run(ctx) })
	g.Go(func() error { return runner.Run(ctx) })
	g.Go(func() error { return sender.Run(ctx) })
	g.Go(func() error {
		cfg.Stats.logPeriodically(ctx, cfg.LogInterval)
		return nil
	})

	return g.Wait()
}
