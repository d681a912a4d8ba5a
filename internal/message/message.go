// Package message defines the typed request/response vocabulary of the gate
// relay protocol and its mapping onto OSC packets carried over UDP.
//
// Every wire message is a single OSC message, either bare or wrapped in a
// bundle holding exactly one message. Requests address gates by a signed 2D
// grid coordinate; the only response kind reports a single measurement bit.
package message

import (
	"errors"
	"fmt"
)

// Coord identifies a position on the fixed 2D qubit grid.
type Coord struct {
	X int32
	Y int32
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// GateOp enumerates the request vocabulary. The zero value is invalid so an
// uninitialized Request cannot masquerade as a real instruction.
type GateOp int

const (
	OpInvalid GateOp = iota
	OpInitZero
	OpX
	OpY
	OpZ
	OpH
	OpS
	OpSdg
	OpT
	OpTdg
	OpCX
	OpMz
)

// addrTable maps OSC address tags to gate operations. Matching is exact;
// unknown tags are decode errors, never silently skipped.
var addrTable = map[string]GateOp{
	"/InitZero": OpInitZero,
	"/X":        OpX,
	"/Y":        OpY,
	"/Z":        OpZ,
	"/H":        OpH,
	"/S":        OpS,
	"/Sdg":      OpSdg,
	"/T":        OpT,
	"/Tdg":      OpTdg,
	"/CX":       OpCX,
	"/Mz":       OpMz,
}

var opAddrs = func() map[GateOp]string {
	m := make(map[GateOp]string, len(addrTable))
	for addr, op := range addrTable {
		m[op] = addr
	}
	return m
}()

// Addr returns the OSC address tag for the operation, or "" if the operation
// is not part of the vocabulary.
func (op GateOp) Addr() string {
	return opAddrs[op]
}

func (op GateOp) String() string {
	if addr := opAddrs[op]; addr != "" {
		return addr
	}
	return fmt.Sprintf("GateOp(%d)", int(op))
}

// Request is one decoded gate instruction. Control is meaningful only for
// OpCX, where the wire order is control-x, control-y, target-x, target-y.
type Request struct {
	Op      GateOp
	Target  Coord
	Control Coord
}

func (r Request) String() string {
	if r.Op == OpCX {
		return fmt.Sprintf("%s %s->%s", r.Op, r.Control, r.Target)
	}
	return fmt.Sprintf("%s %s", r.Op, r.Target)
}

// Response is a measurement result. Index is reserved and always zero in the
// current protocol; Bit encodes a single measurement bit as 0.0 or 1.0.
type Response struct {
	Index int32
	Bit   float32
}

func (q Response) String() string {
	return fmt.Sprintf("/Mz %d %g", q.Index, q.Bit)
}

// Measured reports the response bit as a bool.
func (q Response) Measured() bool {
	return q.Bit != 0
}

// Envelope policy errors. These indicate a peer violating the protocol
// contract rather than network noise, and are classified as fatal by
// IsProtocolViolation.
var (
	ErrEmptyBundle      = errors.New("empty bundle")
	ErrMultipleMessages = errors.New("multiple messages in one bundle")
	ErrNestedBundle     = errors.New("nested bundle not supported")
)

// InvalidAddressError reports an OSC address tag outside the protocol
// vocabulary. It is a transient condition: a stray or misdirected packet.
type InvalidAddressError struct {
	Address string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address %q", e.Address)
}

// InvalidArgsError reports an argument list whose count or types do not match
// the address tag. A well-known tag with wrong arguments means the peer is
// broken, so this is classified as a protocol violation.
type InvalidArgsError struct {
	Address string
	Reason  string
}

func (e *InvalidArgsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Address, e.Reason)
}

// IsProtocolViolation reports whether err indicates a protocol contract
// violation that should abort the relay, as opposed to a transient decode
// failure that is logged and dropped. Envelope-shape errors and argument
// mismatches are violations; unparseable bytes and unknown addresses are
// transient.
func IsProtocolViolation(err error) bool {
	if errors.Is(err, ErrEmptyBundle) ||
		errors.Is(err, ErrMultipleMessages) ||
		errors.Is(err, ErrNestedBundle) {
		return true
	}
	var argsErr *InvalidArgsError
	return errors.As(err, &argsErr)
}
