package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/spinwave-labs/gatelink/internal/backend"
	"github.com/spinwave-labs/gatelink/internal/message"
	"github.com/spinwave-labs/gatelink/internal/monitoring"
)

// MeasurementRecorder receives each measurement outcome the runner produces.
// Recording failures are logged, never fatal: the measurement log is an
// observer of the relay, not a participant.
type MeasurementRecorder interface {
	RecordMeasurement(c message.Coord, bit bool) error
}

// gateTable translates the wire vocabulary's single-qubit operations into
// backend gates. CX and Mz are handled separately because their argument
// shapes differ.
var gateTable = map[message.GateOp]backend.Gate{
	message.OpInitZero: backend.GateInitZero,
	message.OpX:        backend.GateX,
	message.OpY:        backend.GateY,
	message.OpZ:        backend.GateZ,
	message.OpH:        backend.GateH,
	message.OpS:        backend.GateS,
	message.OpSdg:      backend.GateSdg,
	message.OpT:        backend.GateT,
	message.OpTdg:      backend.GateTdg,
}

// Runner consumes typed requests and drives the execution backend. Gate
// requests accumulate in the backend; a measurement request synchronously
// flushes the batch, reads the resulting bit, and emits it as a response.
// Batching until measurement keeps backend round-trips rare while
// guaranteeing each response reflects every gate that preceded it.
type Runner struct {
	backend  backend.Backend
	mapQubit backend.QubitMapper
	mapSlot  backend.QubitMapper
	recorder MeasurementRecorder
	stats    *Stats
	in       <-chan message.Request
	out      chan<- message.Response
	buf      []bool
}

// RunnerConfig configures a Runner. MapQubit and MapSlot default to the
// y-coordinate mapping.
type RunnerConfig struct {
	Backend  backend.Backend
	MapQubit backend.QubitMapper
	MapSlot  backend.QubitMapper
	Recorder MeasurementRecorder
	Stats    *Stats
}

// NewRunner creates a runner reading requests from in and emitting
// measurement responses on out.
func NewRunner(cfg RunnerConfig, in <-chan message.Request, out chan<- message.Response) *Runner {
	if cfg.MapQubit == nil {
		cfg.MapQubit = backend.YMapper
	}
	if cfg.MapSlot == nil {
		cfg.MapSlot = backend.YMapper
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}
	return &Runner{
		backend:  cfg.Backend,
		mapQubit: cfg.MapQubit,
		mapSlot:  cfg.MapSlot,
		recorder: cfg.Recorder,
		stats:    cfg.Stats,
		in:       in,
		out:      out,
		buf:      make([]bool, cfg.Backend.Slots()),
	}
}

// Run processes requests until ctx is cancelled. Contract violations — a
// measurement whose qubit and slot mappings disagree, an unsupported
// operation, an addressing error from the backend — are fatal.
func (r *Runner) Run(ctx context.Context) error {
	monitoring.Logf("runner: started with %d measurement slots", len(r.buf))
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("runner: stopping, context cancelled")
			return ctx.Err()
		case req, ok := <-r.in:
			if !ok {
				return errors.New("runner: request channel closed unexpectedly")
			}
			if err := r.dispatch(ctx, req); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, req message.Request) error {
	switch req.Op {
	case message.OpCX:
		op := backend.CNot(r.mapQubit(req.Control), r.mapQubit(req.Target))
		if err := r.backend.Apply(op); err != nil {
			return fmt.Errorf("runner: apply %v: %w", req, err)
		}
		return nil
	case message.OpMz:
		return r.measure(ctx, req.Target)
	default:
		gate, ok := gateTable[req.Op]
		if !ok {
			return fmt.Errorf("runner: unimplemented operation %v", req.Op)
		}
		op := backend.Single(gate, r.mapQubit(req.Target))
		if err := r.backend.Apply(op); err != nil {
			return fmt.Errorf("runner: apply %v: %w", req, err)
		}
		return nil
	}
}

// measure flushes the accumulated batch and emits the resulting bit. This is
// the pipeline's one suspension point on the backend: the runner blocks here
// while the receiver and sender loops keep running.
func (r *Runner) measure(ctx context.Context, target message.Coord) error {
	qubit := r.mapQubit(target)
	slot := r.mapSlot(target)
	if qubit != slot {
		return fmt.Errorf("runner: measurement at %v maps qubit %d but slot %d; they must be the same position",
			target, qubit, slot)
	}
	if err := r.backend.Apply(backend.Measure(qubit, slot)); err != nil {
		return fmt.Errorf("runner: apply measure at %v: %w", target, err)
	}
	if err := r.backend.ExecuteAndRead(ctx, r.buf); err != nil {
		return fmt.Errorf("runner: execute batch for %v: %w", target, err)
	}
	bit := r.buf[slot]

	var value float32
	if bit {
		value = 1.0
	}
	select {
	case r.out <- message.Response{Index: 0, Bit: value}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if r.recorder != nil {
		if err := r.recorder.RecordMeasurement(target, bit); err != nil {
			monitoring.Warnf("runner: failed to record measurement at %v: %v", target, err)
		}
	}
	r.backend.Clear()
	return nil
}
