package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spinwave-labs/gatelink/internal/backend"
	"github.com/spinwave-labs/gatelink/internal/backend/sim"
	"github.com/spinwave-labs/gatelink/internal/message"
)

// recordingBackend captures the operation stream for order assertions. The
// next ExecuteAndRead serves measurement slots from Outcomes.
type recordingBackend struct {
	Applied  []backend.Op
	Executes int
	Clears   int
	Outcomes map[int]bool
	slots    int
}

func (b *recordingBackend) Apply(op backend.Op) error {
	b.Applied = append(b.Applied, op)
	return nil
}

func (b *recordingBackend) ExecuteAndRead(ctx context.Context, buf []bool) error {
	b.Executes++
	for slot, bit := range b.Outcomes {
		buf[slot] = bit
	}
	return nil
}

func (b *recordingBackend) Clear() { b.Clears++ }

func (b *recordingBackend) Slots() int { return b.slots }

type recordedMeasurement struct {
	Coord message.Coord
	Bit   bool
}

type captureRecorder struct {
	Measurements []recordedMeasurement
}

func (r *captureRecorder) RecordMeasurement(c message.Coord, bit bool) error {
	r.Measurements = append(r.Measurements, recordedMeasurement{Coord: c, Bit: bit})
	return nil
}

func runRunner(t *testing.T, cfg RunnerConfig, requests []message.Request) ([]message.Response, error) {
	t.Helper()
	in := make(chan message.Request, len(requests))
	out := make(chan message.Response, len(requests))
	for _, req := range requests {
		in <- req
	}

	runner := NewRunner(cfg, in, out)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	// Give the runner time to drain the queue, then stop it.
	deadline := time.After(2 * time.Second)
	for len(in) > 0 {
		select {
		case err := <-done:
			cancel()
			return collect(out), err
		case <-deadline:
			cancel()
			t.Fatal("runner did not drain its queue")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(10 * time.Millisecond)
	cancel()
	err := <-done
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return collect(out), err
}

func collect(out chan message.Response) []message.Response {
	var responses []message.Response
	for {
		select {
		case resp := <-out:
			responses = append(responses, resp)
		default:
			return responses
		}
	}
}

func TestRunner_BatchesGatesUntilMeasurement(t *testing.T) {
	be := &recordingBackend{slots: 8, Outcomes: map[int]bool{2: true}}
	requests := []message.Request{
		{Op: message.OpInitZero, Target: message.Coord{X: 0, Y: 2}},
		{Op: message.OpX, Target: message.Coord{X: 0, Y: 2}},
		{Op: message.OpH, Target: message.Coord{X: 1, Y: 3}},
		{Op: message.OpCX, Control: message.Coord{X: 0, Y: 2}, Target: message.Coord{X: 1, Y: 3}},
		{Op: message.OpMz, Target: message.Coord{X: 0, Y: 2}},
	}

	responses, err := runRunner(t, RunnerConfig{Backend: be}, requests)
	if err != nil {
		t.Fatalf("runner failed: %v", err)
	}

	wantOps := []backend.Op{
		backend.Single(backend.GateInitZero, 2),
		backend.Single(backend.GateX, 2),
		backend.Single(backend.GateH, 3),
		backend.CNot(2, 3),
		backend.Measure(2, 2),
	}
	if len(be.Applied) != len(wantOps) {
		t.Fatalf("applied %d ops, want %d: %v", len(be.Applied), len(wantOps), be.Applied)
	}
	for i, want := range wantOps {
		if be.Applied[i] != want {
			t.Errorf("op %d = %v, want %v", i, be.Applied[i], want)
		}
	}

	if be.Executes != 1 {
		t.Errorf("ExecuteAndRead called %d times, want exactly 1 (on the measurement)", be.Executes)
	}
	if be.Clears != 1 {
		t.Errorf("Clear called %d times, want 1", be.Clears)
	}
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if want := (message.Response{Index: 0, Bit: 1.0}); responses[0] != want {
		t.Errorf("response = %v, want %v", responses[0], want)
	}
}

func TestRunner_GateRequestsProduceNoResponse(t *testing.T) {
	be := &recordingBackend{slots: 4}
	requests := []message.Request{
		{Op: message.OpX, Target: message.Coord{X: 0, Y: 0}},
		{Op: message.OpT, Target: message.Coord{X: 0, Y: 1}},
	}
	responses, err := runRunner(t, RunnerConfig{Backend: be}, requests)
	if err != nil {
		t.Fatalf("runner failed: %v", err)
	}
	if len(responses) != 0 {
		t.Errorf("gate-only stream produced %d responses, want 0", len(responses))
	}
	if be.Executes != 0 {
		t.Errorf("gate-only stream triggered %d executions, want 0", be.Executes)
	}
}

func TestRunner_MismatchedSlotMappingIsFatal(t *testing.T) {
	be := &recordingBackend{slots: 4}
	_, err := runRunner(t, RunnerConfig{
		Backend:  be,
		MapQubit: func(c message.Coord) int { return int(c.Y) },
		MapSlot:  func(c message.Coord) int { return int(c.X) },
	}, []message.Request{
		{Op: message.OpMz, Target: message.Coord{X: 1, Y: 2}},
	})
	if err == nil {
		t.Fatal("measurement with disagreeing qubit/slot mappings should be fatal")
	}
}

func TestRunner_UnsupportedOperationIsFatal(t *testing.T) {
	be := &recordingBackend{slots: 4}
	_, err := runRunner(t, RunnerConfig{Backend: be}, []message.Request{
		{Op: message.GateOp(99), Target: message.Coord{}},
	})
	if err == nil {
		t.Fatal("unsupported operation should be fatal, not dropped")
	}
}

func TestRunner_ClosedRequestChannelIsFatal(t *testing.T) {
	in := make(chan message.Request)
	out := make(chan message.Response, 1)
	runner := NewRunner(RunnerConfig{Backend: &recordingBackend{slots: 1}}, in, out)

	done := make(chan error, 1)
	go func() { done <- runner.Run(context.Background()) }()
	close(in)

	select {
	case err := <-done:
		if err == nil {
			t.Error("Run returned nil after request channel close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner hung on closed request channel")
	}
}

func TestRunner_RecordsMeasurements(t *testing.T) {
	be := &recordingBackend{slots: 4, Outcomes: map[int]bool{1: true}}
	rec := &captureRecorder{}
	_, err := runRunner(t, RunnerConfig{Backend: be, Recorder: rec}, []message.Request{
		{Op: message.OpMz, Target: message.Coord{X: 0, Y: 1}},
	})
	if err != nil {
		t.Fatalf("runner failed: %v", err)
	}
	if len(rec.Measurements) != 1 {
		t.Fatalf("recorded %d measurements, want 1", len(rec.Measurements))
	}
	got := rec.Measurements[0]
	if got.Coord != (message.Coord{X: 0, Y: 1}) || !got.Bit {
		t.Errorf("recorded %+v, want coord (0,1) bit true", got)
	}
}

func TestRunner_XThenMeasureAgainstSim(t *testing.T) {
	// /X 0 0 then /Mz 0 0: the measured bit must reflect the flip.
	responses, err := runRunner(t, RunnerConfig{Backend: sim.New(4, 123)}, []message.Request{
		{Op: message.OpX, Target: message.Coord{X: 0, Y: 0}},
		{Op: message.OpMz, Target: message.Coord{X: 0, Y: 0}},
	})
	if err != nil {
		t.Fatalf("runner failed: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].Bit != 1.0 {
		t.Errorf("measured bit = %g, want 1.0 after X on |0>", responses[0].Bit)
	}
}
