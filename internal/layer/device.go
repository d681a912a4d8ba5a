package layer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spinwave-labs/gatelink/internal/message"
	"github.com/spinwave-labs/gatelink/internal/monitoring"
)

const deviceQueueLen = 1000

// singleQubitOps maps abstract single-qubit opcodes onto the wire
// vocabulary.
var singleQubitOps = map[OpCode]message.GateOp{
	OpX:   message.OpX,
	OpY:   message.OpY,
	OpZ:   message.OpZ,
	OpH:   message.OpH,
	OpS:   message.OpS,
	OpSdg: message.OpSdg,
	OpT:   message.OpT,
	OpTdg: message.OpTdg,
}

// requestToken travels from Send to the device comm loop. An end token marks
// the batch boundary so the receive side knows when the batch's responses
// are complete.
type requestToken struct {
	req message.Request
	end bool
}

// resultToken travels from the comm loop to Receive. An end token mirrors
// the batch terminator back to the caller.
type resultToken struct {
	pos message.Coord
	bit bool
	end bool
}

// DeviceLayer implements Layer against a remote device speaking the relay
// protocol. It runs the relay's receive/translate/reply logic in-process: a
// single comm goroutine owns the UDP socket, transmits each request, and for
// measurements synchronously awaits the device's one response before moving
// on. That per-measurement round-trip is what keeps request and response
// strictly paired over a transport with no ordering guarantees.
type DeviceLayer struct {
	size    GridSize
	reqs    chan requestToken
	results chan resultToken
	cancel  context.CancelFunc
	done    chan struct{}
	loopErr error
}

// NewDeviceLayer connects a layer to the device at deviceAddr, binding the
// local UDP endpoint at listenAddr ("host:0" picks an ephemeral port). The
// comm loop starts immediately; a bind or resolve failure is returned here.
func NewDeviceLayer(size GridSize, deviceAddr, listenAddr string) (*DeviceLayer, error) {
	if size.W <= 0 || size.H <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", size.W, size.H)
	}
	dest, err := net.ResolveUDPAddr("udp", deviceAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve device address %q: %w", deviceAddr, err)
	}
	local, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address %q: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, fmt.Errorf("bind %q: %w", listenAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &DeviceLayer{
		size:    size,
		reqs:    make(chan requestToken, deviceQueueLen),
		results: make(chan resultToken, deviceQueueLen),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		defer close(l.results)
		defer conn.Close()
		l.loopErr = l.commLoop(ctx, conn, dest)
		if l.loopErr != nil && !errors.Is(l.loopErr, context.Canceled) {
			monitoring.Warnf("device comm loop failed: %v", l.loopErr)
		}
	}()
	return l, nil
}

// Close stops the comm loop and returns its terminal error, if any.
func (l *DeviceLayer) Close() error {
	l.cancel()
	<-l.done
	if errors.Is(l.loopErr, context.Canceled) {
		return nil
	}
	return l.loopErr
}

// MakeBuffer allocates a result buffer covering the layer's grid.
func (l *DeviceLayer) MakeBuffer() *MeasureBuffer {
	return NewMeasureBuffer(l.size)
}

// Send translates the batch into wire requests and queues them for the comm
// loop, blocking when the queue is full. A terminator always follows the
// batch, even an empty one, so Receive has a boundary to stop at. Operations
// whose argument shape does not match their opcode are rejected. Once the
// comm loop has stopped, Send fails instead of queueing against it.
func (l *DeviceLayer) Send(ops []Operation) error {
	for _, op := range ops {
		reqs, err := l.translate(op)
		if err != nil {
			return err
		}
		for _, req := range reqs {
			if err := l.enqueue(requestToken{req: req}); err != nil {
				return err
			}
		}
	}
	return l.enqueue(requestToken{end: true})
}

// enqueue queues one token for the comm loop. The done channel is checked
// before and during the blocking send so a dead loop surfaces as an error
// even when the queue still has room.
func (l *DeviceLayer) enqueue(tok requestToken) error {
	select {
	case <-l.done:
		return l.commError()
	default:
	}
	select {
	case l.reqs <- tok:
		return nil
	case <-l.done:
		return l.commError()
	}
}

// commError reports why the comm loop stopped. Callers must have observed
// loop termination first, via the done channel or the closed result channel.
func (l *DeviceLayer) commError() error {
	if l.loopErr != nil && !errors.Is(l.loopErr, context.Canceled) {
		return fmt.Errorf("device comm loop terminated: %w", l.loopErr)
	}
	return errors.New("device comm loop terminated")
}

// Receive consumes the current batch's measurement results into buf,
// blocking until the terminator arrives. A closed result channel means the
// comm loop died, which is fatal to the caller.
func (l *DeviceLayer) Receive(buf *MeasureBuffer) error {
	for {
		tok, ok := <-l.results
		if !ok {
			return l.commError()
		}
		if tok.end {
			return nil
		}
		buf.Set(tok.pos, tok.bit)
	}
}

func (l *DeviceLayer) translate(op Operation) ([]message.Request, error) {
	switch op.Code {
	case OpInit:
		if len(op.Qubits) != 0 || op.Slot != nil {
			return nil, fmt.Errorf("init operation takes no arguments, got %v", op)
		}
		reqs := make([]message.Request, 0, l.size.W*l.size.H)
		for y := 0; y < l.size.H; y++ {
			for x := 0; x < l.size.W; x++ {
				reqs = append(reqs, message.Request{
					Op:     message.OpInitZero,
					Target: message.Coord{X: int32(x), Y: int32(y)},
				})
			}
		}
		return reqs, nil
	case OpCX:
		if len(op.Qubits) != 2 || op.Slot != nil {
			return nil, fmt.Errorf("CX takes a control and a target, got %v", op)
		}
		return []message.Request{{
			Op:      message.OpCX,
			Control: op.Qubits[0],
			Target:  op.Qubits[1],
		}}, nil
	case OpMeasure:
		if len(op.Qubits) != 1 || op.Slot == nil {
			return nil, fmt.Errorf("measure takes a qubit and a slot, got %v", op)
		}
		if *op.Slot != op.Qubits[0] {
			return nil, fmt.Errorf("measure qubit %v and slot %v must be the same position",
				op.Qubits[0], *op.Slot)
		}
		return []message.Request{{Op: message.OpMz, Target: op.Qubits[0]}}, nil
	default:
		gate, ok := singleQubitOps[op.Code]
		if !ok {
			return nil, fmt.Errorf("unexpected operation %v", op.Code)
		}
		if len(op.Qubits) != 1 || op.Slot != nil {
			return nil, fmt.Errorf("%v takes exactly one qubit, got %v", op.Code, op)
		}
		return []message.Request{{Op: gate, Target: op.Qubits[0]}}, nil
	}
}

// commLoop transmits queued requests to the device and, for each
// measurement, blocks until the single corresponding response arrives on the
// same socket. End tokens pass straight through to the result channel.
func (l *DeviceLayer) commLoop(ctx context.Context, conn *net.UDPConn, dest *net.UDPAddr) error {
	buf := make([]byte, 1000)
	for {
		var tok requestToken
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tok = <-l.reqs:
		}

		if tok.end {
			select {
			case l.results <- resultToken{end: true}:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		data, err := message.EncodeRequest(tok.req)
		if err != nil {
			return fmt.Errorf("encode %v: %w", tok.req, err)
		}
		if _, err := conn.WriteToUDP(data, dest); err != nil {
			return fmt.Errorf("send %v to device: %w", tok.req, err)
		}

		if tok.req.Op != message.OpMz {
			continue
		}

		resp, err := l.awaitResponse(ctx, conn, buf)
		if err != nil {
			return fmt.Errorf("await response for %v: %w", tok.req, err)
		}
		select {
		case l.results <- resultToken{pos: tok.req.Target, bit: resp.Measured()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *DeviceLayer) awaitResponse(ctx context.Context, conn *net.UDPConn, buf []byte) (message.Response, error) {
	for {
		if err := ctx.Err(); err != nil {
			return message.Response{}, err
		}
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			return message.Response{}, err
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return message.Response{}, err
		}
		resp, err := message.DecodeResponse(buf[:n])
		if err != nil {
			if message.IsProtocolViolation(err) {
				return message.Response{}, err
			}
			monitoring.Warnf("device layer: dropping datagram: %v", err)
			continue
		}
		return resp, nil
	}
}
