// Package layer defines the abstract quantum-layer contract and a device
// adapter that implements it over the relay protocol. A caller hands the
// layer batches of abstract gate operations and later collects measurement
// outcomes into a grid-shaped buffer; the adapter turns the batch into wire
// requests against a remote device.
package layer

import (
	"fmt"

	"github.com/spinwave-labs/gatelink/internal/message"
)

// OpCode enumerates the abstract operation vocabulary.
type OpCode int

const (
	OpInvalid OpCode = iota
	OpInit
	OpX
	OpY
	OpZ
	OpH
	OpS
	OpSdg
	OpT
	OpTdg
	OpCX
	OpMeasure
)

var opNames = map[OpCode]string{
	OpInit:    "Init",
	OpX:       "X",
	OpY:       "Y",
	OpZ:       "Z",
	OpH:       "H",
	OpS:       "S",
	OpSdg:     "Sdg",
	OpT:       "T",
	OpTdg:     "Tdg",
	OpCX:      "CX",
	OpMeasure: "Measure",
}

func (c OpCode) String() string {
	if name, ok := opNames[c]; ok {
		return name
	}
	return fmt.Sprintf("OpCode(%d)", int(c))
}

// Operation is one abstract instruction. Qubits carries zero coordinates for
// Init, one for single-qubit gates and Measure, and two (control, target)
// for CX. Slot is set only for Measure. Operations built by hand instead of
// through the constructors may violate these shapes; Send rejects them.
type Operation struct {
	Code   OpCode
	Qubits []message.Coord
	Slot   *message.Coord
}

func (op Operation) String() string {
	return fmt.Sprintf("%v%v", op.Code, op.Qubits)
}

// Init builds the whole-grid initialization operation.
func Init() Operation {
	return Operation{Code: OpInit}
}

// Gate builds a single-qubit gate operation.
func Gate(code OpCode, q message.Coord) Operation {
	return Operation{Code: code, Qubits: []message.Coord{q}}
}

// CNot builds a controlled-X operation.
func CNot(control, target message.Coord) Operation {
	return Operation{Code: OpCX, Qubits: []message.Coord{control, target}}
}

// Measure builds a measure operation reading qubit q into slot.
func Measure(q, slot message.Coord) Operation {
	return Operation{Code: OpMeasure, Qubits: []message.Coord{q}, Slot: &slot}
}

// Layer is the abstract quantum-layer contract: submit a batch of
// operations, then collect the batch's measurement results. Both calls
// block the caller.
type Layer interface {
	Send(ops []Operation) error
	Receive(buf *MeasureBuffer) error
	MakeBuffer() *MeasureBuffer
}

// GridSize is the layer's qubit grid dimensions.
type GridSize struct {
	W int
	H int
}

// MeasureBuffer holds one measurement bit per grid position, row-major.
type MeasureBuffer struct {
	bits  []bool
	width int
}

// NewMeasureBuffer creates a zeroed buffer for the given grid.
func NewMeasureBuffer(size GridSize) *MeasureBuffer {
	return &MeasureBuffer{
		bits:  make([]bool, size.W*size.H),
		width: size.W,
	}
}

// Get returns the measurement bit recorded at c.
func (b *MeasureBuffer) Get(c message.Coord) bool {
	return b.bits[int(c.Y)*b.width+int(c.X)]
}

// Set records a measurement bit at c.
func (b *MeasureBuffer) Set(c message.Coord, bit bool) {
	b.bits[int(c.Y)*b.width+int(c.X)] = bit
}
