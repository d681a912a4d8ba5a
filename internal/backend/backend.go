// Package backend defines the contract between the relay and a quantum
// execution engine. The engine accumulates applied operations internally and
// executes them as a batch when asked to read measurement results, so gate
// submission stays cheap and readback round-trips stay rare.
package backend

import (
	"context"
	"fmt"

	"github.com/spinwave-labs/gatelink/internal/message"
)

// Gate enumerates the operations a backend must understand.
type Gate int

const (
	GateInvalid Gate = iota
	GateInitZero
	GateX
	GateY
	GateZ
	GateH
	GateS
	GateSdg
	GateT
	GateTdg
	GateCX
	GateMeasure
)

var gateNames = map[Gate]string{
	GateInitZero: "InitZero",
	GateX:        "X",
	GateY:        "Y",
	GateZ:        "Z",
	GateH:        "H",
	GateS:        "S",
	GateSdg:      "Sdg",
	GateT:        "T",
	GateTdg:      "Tdg",
	GateCX:       "CX",
	GateMeasure:  "Measure",
}

func (g Gate) String() string {
	if name, ok := gateNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Gate(%d)", int(g))
}

// Op is one pending operation addressed by backend qubit identifiers.
// Qubit2 is the target for GateCX (Qubit is the control); Slot is the result
// position for GateMeasure.
type Op struct {
	Gate   Gate
	Qubit  int
	Qubit2 int
	Slot   int
}

// Single builds a single-qubit operation.
func Single(g Gate, qubit int) Op {
	return Op{Gate: g, Qubit: qubit}
}

// CNot builds a controlled-X operation.
func CNot(control, target int) Op {
	return Op{Gate: GateCX, Qubit: control, Qubit2: target}
}

// Measure builds a measure-into-slot operation.
func Measure(qubit, slot int) Op {
	return Op{Gate: GateMeasure, Qubit: qubit, Slot: slot}
}

// Backend is the execution engine consumed by the relay. Apply is
// non-blocking and may fail only on qubit addressing errors; ExecuteAndRead
// blocks until every operation applied since the last Clear has executed and
// the measurement slots in buf are filled; Clear resets the pending
// operation state.
type Backend interface {
	Apply(op Op) error
	ExecuteAndRead(ctx context.Context, buf []bool) error
	Clear()
	Slots() int
}

// QubitMapper derives a backend qubit identifier from a grid coordinate.
type QubitMapper func(c message.Coord) int

// YMapper maps a coordinate to its y component, the default addressing
// scheme for backends with a linear qubit register.
func YMapper(c message.Coord) int {
	return int(c.Y)
}
