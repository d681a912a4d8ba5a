package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/spinwave-labs/gatelink/internal/message"
	"github.com/spinwave-labs/gatelink/internal/monitoring"
)

// Receiver owns the inbound UDP endpoint. It decodes each datagram into a
// typed request and forwards it on the request channel, blocking when the
// channel is full. Undecodable datagrams are logged and dropped; protocol
// violations abort the loop.
type Receiver struct {
	addr          string
	packetBufLen  int
	rcvBuf        int
	readDeadline  time.Duration
	stats         *Stats
	socketFactory UDPSocketFactory
	out           chan<- message.Request

	connMu sync.RWMutex
	conn   UDPSocket
}

// ReceiverConfig configures a Receiver. Zero values get working defaults.
type ReceiverConfig struct {
	Addr          string
	PacketBufLen  int
	RcvBuf        int
	ReadDeadline  time.Duration
	Stats         *Stats
	SocketFactory UDPSocketFactory
}

// NewReceiver creates a receiver that forwards decoded requests to out.
func NewReceiver(cfg ReceiverConfig, out chan<- message.Request) *Receiver {
	if cfg.PacketBufLen == 0 {
		cfg.PacketBufLen = DefaultPacketBufLen
	}
	if cfg.ReadDeadline == 0 {
		cfg.ReadDeadline = 100 * time.Millisecond
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}
	if cfg.SocketFactory == nil {
		cfg.SocketFactory = &RealUDPSocketFactory{}
	}
	return &Receiver{
		addr:          cfg.Addr,
		packetBufLen:  cfg.PacketBufLen,
		rcvBuf:        cfg.RcvBuf,
		readDeadline:  cfg.ReadDeadline,
		stats:         cfg.Stats,
		socketFactory: cfg.SocketFactory,
		out:           out,
	}
}

// Run binds the socket and loops until ctx is cancelled, the socket closes,
// or a fatal error occurs. A bind failure is returned immediately.
func (r *Receiver) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", r.addr)
	if err != nil {
		return fmt.Errorf("resolve listen address %q: %w", r.addr, err)
	}
	conn, err := r.socketFactory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind %q: %w", r.addr, err)
	}
	r.setConn(conn)
	defer conn.Close()

	if r.rcvBuf > 0 {
		if err := conn.SetReadBuffer(r.rcvBuf); err != nil {
			monitoring.Warnf("failed to set receive buffer to %d: %v", r.rcvBuf, err)
		}
	}
	monitoring.Logf("receiver: listening on %s", conn.LocalAddr())

	buf := make([]byte, r.packetBufLen)
	var deadlineErrLogged bool

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("receiver: stopping, context cancelled")
			return ctx.Err()
		default:
		}

		// Short read deadlines keep the loop responsive to cancellation.
		if err := conn.SetReadDeadline(time.Now().Add(r.readDeadline)); err != nil {
			if !deadlineErrLogged {
				monitoring.Warnf("failed to set read deadline: %v", err)
				deadlineErrLogged = true
			}
		}

		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.New("receiver: socket closed")
			}
			monitoring.Warnf("receiver: read error: %v", err)
			continue
		}
		r.stats.AddPacket(n)

		req, err := message.DecodeRequest(buf[:n])
		if err != nil {
			if message.IsProtocolViolation(err) {
				return fmt.Errorf("receiver: protocol violation from %v: %w", peer, err)
			}
			r.stats.AddDecodeError()
			monitoring.Warnf("receiver: dropping datagram from %v: %v", peer, err)
			continue
		}

		select {
		case r.out <- req:
			r.stats.AddRequest()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Receiver) setConn(conn UDPSocket) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	r.conn = conn
}

// LocalAddr returns the bound address, or nil before Run has bound the
// socket. Tests use it to learn the ephemeral port.
func (r *Receiver) LocalAddr() net.Addr {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}
