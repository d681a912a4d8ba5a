package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/spinwave-labs/gatelink/internal/message"
	"github.com/spinwave-labs/gatelink/internal/monitoring"
)

// Sender owns the outbound UDP endpoint. It consumes responses from its
// channel, encodes each one, and transmits it to the fixed destination
// configured at startup. The pipeline runs indefinitely, so a closed response
// channel is an unexpected-termination error rather than a clean stop.
type Sender struct {
	conn  *net.UDPConn
	dest  string
	in    <-chan message.Response
	stats *Stats
}

// NewSender dials the destination address. A dial failure is fatal at
// startup; there is no reconnection logic.
func NewSender(dest string, in <-chan message.Response, stats *Stats) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve destination %q: %w", dest, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", dest, err)
	}
	if stats == nil {
		stats = NewStats()
	}
	return &Sender{conn: conn, dest: dest, in: in, stats: stats}, nil
}

// Run transmits responses until ctx is cancelled. An encode failure is fatal:
// the response vocabulary guarantees well-formed values, so failing to encode
// one means a programming error upstream, not recoverable input.
func (s *Sender) Run(ctx context.Context) error {
	monitoring.Logf("sender: forwarding responses to %s", s.dest)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("sender: stopping, context cancelled")
			return ctx.Err()
		case resp, ok := <-s.in:
			if !ok {
				return errors.New("sender: response channel closed unexpectedly")
			}
			data, err := message.EncodeResponse(resp)
			if err != nil {
				return fmt.Errorf("sender: %w", err)
			}
			if _, err := s.conn.Write(data); err != nil {
				// Datagram transport: a send failure is packet loss, not a
				// reason to kill the pipeline.
				s.stats.AddSendError()
				monitoring.Warnf("sender: failed to transmit %v: %v", resp, err)
				continue
			}
			s.stats.AddResponse()
		}
	}
}

// Close releases the outbound socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
