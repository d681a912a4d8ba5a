package message

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"github.com/spinwave-labs/gatelink/internal/monitoring"
)

// EncodeRequest serializes a request as a bare OSC message. Encoding is total
// for in-vocabulary requests; an error here means the caller constructed a
// request outside the vocabulary, which callers treat as fatal.
func EncodeRequest(r Request) ([]byte, error) {
	addr := r.Op.Addr()
	if addr == "" {
		return nil, fmt.Errorf("encode request: unknown operation %v", r.Op)
	}
	msg := osc.NewMessage(addr)
	if r.Op == OpCX {
		msg.Append(r.Control.X)
		msg.Append(r.Control.Y)
	}
	msg.Append(r.Target.X)
	msg.Append(r.Target.Y)
	data, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode request %v: %w", r, err)
	}
	return data, nil
}

// EncodeResponse serializes a measurement response as a bare OSC message.
func EncodeResponse(q Response) ([]byte, error) {
	msg := osc.NewMessage("/Mz")
	msg.Append(q.Index)
	msg.Append(q.Bit)
	data, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode response %v: %w", q, err)
	}
	return data, nil
}

// DecodeRequest parses one datagram into a Request, enforcing the envelope
// policy and the per-address argument arity.
func DecodeRequest(data []byte) (Request, error) {
	msg, err := unwrap(data)
	if err != nil {
		return Request{}, err
	}
	op, ok := addrTable[msg.Address]
	if !ok {
		return Request{}, &InvalidAddressError{Address: msg.Address}
	}
	ints, err := intArgs(msg)
	if err != nil {
		return Request{}, err
	}
	want := 2
	if op == OpCX {
		want = 4
	}
	if len(ints) != want {
		return Request{}, &InvalidArgsError{
			Address: msg.Address,
			Reason:  fmt.Sprintf("got %d int args, want %d", len(ints), want),
		}
	}
	req := Request{Op: op}
	if op == OpCX {
		req.Control = Coord{X: ints[0], Y: ints[1]}
		req.Target = Coord{X: ints[2], Y: ints[3]}
	} else {
		req.Target = Coord{X: ints[0], Y: ints[1]}
	}
	return req, nil
}

// DecodeResponse parses one datagram into a Response. The only valid address
// on the response path is /Mz carrying an int index and a float bit.
func DecodeResponse(data []byte) (Response, error) {
	msg, err := unwrap(data)
	if err != nil {
		return Response{}, err
	}
	if msg.Address != "/Mz" {
		return Response{}, &InvalidAddressError{Address: msg.Address}
	}
	if len(msg.Arguments) != 2 {
		return Response{}, &InvalidArgsError{
			Address: msg.Address,
			Reason:  fmt.Sprintf("got %d args, want 2", len(msg.Arguments)),
		}
	}
	index, ok := msg.Arguments[0].(int32)
	if !ok {
		return Response{}, &InvalidArgsError{Address: msg.Address, Reason: "index must be int32"}
	}
	bit, ok := msg.Arguments[1].(float32)
	if !ok {
		return Response{}, &InvalidArgsError{Address: msg.Address, Reason: "bit must be float32"}
	}
	return Response{Index: index, Bit: bit}, nil
}

// unwrap applies the envelope policy: a bare message is accepted but logged
// as non-conforming, a bundle must hold exactly one message, and nesting is
// rejected.
func unwrap(data []byte) (*osc.Message, error) {
	packet, err := osc.ParsePacket(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse OSC packet: %w", err)
	}
	switch p := packet.(type) {
	case *osc.Message:
		monitoring.Warnf("message without bundle from peer: %s", p.Address)
		return p, nil
	case *osc.Bundle:
		n := len(p.Messages) + len(p.Bundles)
		if n == 0 {
			return nil, ErrEmptyBundle
		}
		if n > 1 {
			return nil, ErrMultipleMessages
		}
		if len(p.Bundles) == 1 {
			return nil, ErrNestedBundle
		}
		return p.Messages[0], nil
	default:
		return nil, fmt.Errorf("unexpected OSC packet type %T", packet)
	}
}

// intArgs extracts the argument list as int32s, rejecting any other type.
func intArgs(msg *osc.Message) ([]int32, error) {
	ints := make([]int32, 0, len(msg.Arguments))
	for _, arg := range msg.Arguments {
		v, ok := arg.(int32)
		if !ok {
			return nil, &InvalidArgsError{
				Address: msg.Address,
				Reason:  fmt.Sprintf("argument %v is %T, want int32", arg, arg),
			}
		}
		ints = append(ints, v)
	}
	return ints, nil
}
