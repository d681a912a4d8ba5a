package message

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hypebeast/go-osc/osc"
)

func TestRequestRoundTrip(t *testing.T) {
	requests := []Request{
		{Op: OpInitZero, Target: Coord{X: 0, Y: 0}},
		{Op: OpX, Target: Coord{X: 1, Y: 2}},
		{Op: OpY, Target: Coord{X: -1, Y: 3}},
		{Op: OpZ, Target: Coord{X: 4, Y: -5}},
		{Op: OpH, Target: Coord{X: 0, Y: 7}},
		{Op: OpS, Target: Coord{X: 2, Y: 2}},
		{Op: OpSdg, Target: Coord{X: 3, Y: 0}},
		{Op: OpT, Target: Coord{X: 9, Y: 9}},
		{Op: OpTdg, Target: Coord{X: -2, Y: -2}},
		{Op: OpCX, Control: Coord{X: 0, Y: 1}, Target: Coord{X: 0, Y: 2}},
		{Op: OpMz, Target: Coord{X: 5, Y: 6}},
	}

	for _, want := range requests {
		t.Run(want.Op.String(), func(t *testing.T) {
			data, err := EncodeRequest(want)
			if err != nil {
				t.Fatalf("EncodeRequest(%v) failed: %v", want, err)
			}
			got, err := DecodeRequest(data)
			if err != nil {
				t.Fatalf("DecodeRequest failed: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	for _, want := range []Response{
		{Index: 0, Bit: 0.0},
		{Index: 0, Bit: 1.0},
	} {
		data, err := EncodeResponse(want)
		if err != nil {
			t.Fatalf("EncodeResponse(%v) failed: %v", want, err)
		}
		got, err := DecodeResponse(data)
		if err != nil {
			t.Fatalf("DecodeResponse failed: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodeRequest_BundledMessage(t *testing.T) {
	msg := osc.NewMessage("/X")
	msg.Append(int32(3))
	msg.Append(int32(4))
	bundle := osc.NewBundle(time.Now())
	if err := bundle.Append(msg); err != nil {
		t.Fatalf("bundle append failed: %v", err)
	}
	data, err := bundle.MarshalBinary()
	if err != nil {
		t.Fatalf("bundle marshal failed: %v", err)
	}

	got, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}
	want := Request{Op: OpX, Target: Coord{X: 3, Y: 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded request mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRequest_EnvelopeViolations(t *testing.T) {
	single := func() *osc.Message {
		m := osc.NewMessage("/X")
		m.Append(int32(0))
		m.Append(int32(0))
		return m
	}

	empty := osc.NewBundle(time.Now())

	multiple := osc.NewBundle(time.Now())
	if err := multiple.Append(single()); err != nil {
		t.Fatal(err)
	}
	if err := multiple.Append(single()); err != nil {
		t.Fatal(err)
	}

	nested := osc.NewBundle(time.Now())
	inner := osc.NewBundle(time.Now())
	if err := inner.Append(single()); err != nil {
		t.Fatal(err)
	}
	if err := nested.Append(inner); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		bundle  *osc.Bundle
		wantErr error
	}{
		{"empty bundle", empty, ErrEmptyBundle},
		{"multiple messages", multiple, ErrMultipleMessages},
		{"nested bundle", nested, ErrNestedBundle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.bundle.MarshalBinary()
			if err != nil {
				t.Fatalf("bundle marshal failed: %v", err)
			}
			_, err = DecodeRequest(data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeRequest error = %v, want %v", err, tt.wantErr)
			}
			if !IsProtocolViolation(err) {
				t.Errorf("error %v should classify as protocol violation", err)
			}
		})
	}
}

func TestDecodeRequest_UnknownAddress(t *testing.T) {
	msg := osc.NewMessage("/Foo")
	msg.Append(int32(0))
	msg.Append(int32(0))
	data, err := msg.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	_, err = DecodeRequest(data)
	var addrErr *InvalidAddressError
	if !errors.As(err, &addrErr) {
		t.Fatalf("DecodeRequest error = %v, want InvalidAddressError", err)
	}
	if addrErr.Address != "/Foo" {
		t.Errorf("error address = %q, want /Foo", addrErr.Address)
	}
	if IsProtocolViolation(err) {
		t.Error("unknown address should be transient, not a protocol violation")
	}
}

func TestDecodeRequest_ArityMismatch(t *testing.T) {
	tests := []struct {
		name string
		addr string
		args []interface{}
	}{
		{"single-qubit too few", "/X", []interface{}{int32(0)}},
		{"single-qubit too many", "/H", []interface{}{int32(0), int32(1), int32(2)}},
		{"cx too few", "/CX", []interface{}{int32(0), int32(1), int32(2)}},
		{"wrong type", "/Z", []interface{}{float32(1.0), int32(0)}},
		{"no args", "/Mz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := osc.NewMessage(tt.addr)
			for _, arg := range tt.args {
				msg.Append(arg)
			}
			data, err := msg.MarshalBinary()
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}

			_, err = DecodeRequest(data)
			var argsErr *InvalidArgsError
			if !errors.As(err, &argsErr) {
				t.Fatalf("DecodeRequest error = %v, want InvalidArgsError", err)
			}
			if !IsProtocolViolation(err) {
				t.Errorf("arity mismatch should classify as protocol violation")
			}
		})
	}
}

func TestDecodeResponse_Errors(t *testing.T) {
	wrongAddr := osc.NewMessage("/X")
	wrongAddr.Append(int32(0))
	wrongAddr.Append(float32(1))
	data, err := wrongAddr.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeResponse(data); err == nil {
		t.Error("DecodeResponse accepted a non-/Mz address")
	}

	wrongType := osc.NewMessage("/Mz")
	wrongType.Append(int32(0))
	wrongType.Append(int32(1)) // bit must be float
	data, err = wrongType.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var argsErr *InvalidArgsError
	if _, err := DecodeResponse(data); !errors.As(err, &argsErr) {
		t.Errorf("DecodeResponse error = %v, want InvalidArgsError", err)
	}
}

func TestDecode_GarbageBytes(t *testing.T) {
	_, err := DecodeRequest([]byte{0x01, 0x02, 0x03})
	if err == nil {
		t.Fatal("DecodeRequest accepted garbage bytes")
	}
	if IsProtocolViolation(err) {
		t.Error("garbage bytes should be transient, not a protocol violation")
	}
}
