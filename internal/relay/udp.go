package relay

import (
	"net"
	"time"
)

// UDPSocket abstracts the inbound UDP endpoint so loop behavior can be tested
// without real network connections.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory creates the socket a loop will own. The default factory
// binds a real socket; tests inject a mock.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocket wraps *net.UDPConn to satisfy UDPSocket.
type RealUDPSocket struct {
	conn *net.UDPConn
}

func (r *RealUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	return r.conn.ReadFromUDP(b)
}

func (r *RealUDPSocket) SetReadBuffer(bytes int) error {
	return r.conn.SetReadBuffer(bytes)
}

func (r *RealUDPSocket) SetReadDeadline(t time.Time) error {
	return r.conn.SetReadDeadline(t)
}

func (r *RealUDPSocket) Close() error {
	return r.conn.Close()
}

func (r *RealUDPSocket) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// RealUDPSocketFactory binds sockets with net.ListenUDP.
type RealUDPSocketFactory struct{}

func (f *RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return &RealUDPSocket{conn: conn}, nil
}

// MockUDPPacket is one datagram served by MockUDPSocket.
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// MockUDPSocket serves a fixed packet sequence, then simulates read timeouts
// so the receive loop keeps polling until its context is cancelled.
type MockUDPSocket struct {
	Packets   []MockUDPPacket
	ReadIndex int
	Closed    bool
	ReadError error
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, nil, err
	}
	if m.ReadIndex >= len(m.Packets) {
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: &timeoutError{}}
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	return copy(b, pkt.Data), pkt.Addr, nil
}

func (m *MockUDPSocket) SetReadBuffer(bytes int) error     { return nil }
func (m *MockUDPSocket) SetReadDeadline(t time.Time) error { return nil }

func (m *MockUDPSocket) Close() error {
	m.Closed = true
	return nil
}

func (m *MockUDPSocket) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 7000}
}

// MockUDPSocketFactory returns a prepared mock socket from ListenUDP.
type MockUDPSocketFactory struct {
	Socket *MockUDPSocket
	Err    error
}

func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Socket, nil
}

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
