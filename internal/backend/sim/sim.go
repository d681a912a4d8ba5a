// Package sim provides a seeded local simulation backend. It models qubits
// classically: basis bits flip under X and Y, phase gates leave the basis
// state alone, and H marks a qubit superposed so that its next measurement
// draws from the seeded random source. The same seed always reproduces the
// same outcome sequence, which keeps local runs and tests deterministic.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/spinwave-labs/gatelink/internal/backend"
)

type qubitState struct {
	bit   bool
	super bool
}

// Sim is a local execution backend over a linear register of n qubits.
// Measurement slots share the register's index space.
type Sim struct {
	mu      sync.Mutex
	rng     *rand.Rand
	qubits  []qubitState
	pending []backend.Op
}

// New creates a simulator with n qubits, all initialized to |0>, drawing
// measurement outcomes for superposed qubits from a source seeded with seed.
func New(n int, seed int64) *Sim {
	return &Sim{
		rng:    rand.New(rand.NewSource(seed)),
		qubits: make([]qubitState, n),
	}
}

// Slots returns the number of addressable measurement slots.
func (s *Sim) Slots() int {
	return len(s.qubits)
}

// Apply validates addressing and queues the operation for the next
// ExecuteAndRead.
func (s *Sim) Apply(op backend.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(op.Qubit); err != nil {
		return err
	}
	switch op.Gate {
	case backend.GateCX:
		if err := s.checkIndex(op.Qubit2); err != nil {
			return err
		}
	case backend.GateMeasure:
		if err := s.checkIndex(op.Slot); err != nil {
			return err
		}
	}
	s.pending = append(s.pending, op)
	return nil
}

// ExecuteAndRead runs every pending operation in order and writes measurement
// outcomes into buf at their slots. Pending state is consumed; qubit state
// persists across batches.
func (s *Sim) ExecuteAndRead(ctx context.Context, buf []bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range s.pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.run(op, buf); err != nil {
			return err
		}
	}
	s.pending = s.pending[:0]
	return nil
}

// Clear discards pending operations without executing them.
func (s *Sim) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = s.pending[:0]
}

func (s *Sim) run(op backend.Op, buf []bool) error {
	q := &s.qubits[op.Qubit]
	switch op.Gate {
	case backend.GateInitZero:
		q.bit = false
		q.super = false
	case backend.GateX, backend.GateY:
		q.bit = !q.bit
	case backend.GateZ, backend.GateS, backend.GateSdg, backend.GateT, backend.GateTdg:
		// phase only, no basis effect
	case backend.GateH:
		q.super = !q.super
	case backend.GateCX:
		t := &s.qubits[op.Qubit2]
		if q.super {
			t.super = true
		} else if q.bit {
			t.bit = !t.bit
		}
	case backend.GateMeasure:
		if q.super {
			q.bit = s.rng.Intn(2) == 1
			q.super = false
		}
		if op.Slot >= len(buf) {
			return fmt.Errorf("measurement slot %d outside result buffer of %d", op.Slot, len(buf))
		}
		buf[op.Slot] = q.bit
	default:
		return fmt.Errorf("unsupported gate %v", op.Gate)
	}
	return nil
}

func (s *Sim) checkIndex(i int) error {
	if i < 0 || i >= len(s.qubits) {
		return fmt.Errorf("qubit %d outside register of %d", i, len(s.qubits))
	}
	return nil
}
