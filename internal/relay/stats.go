package relay

import (
	"context"
	"sync"
	"time"

	"github.com/spinwave-labs/gatelink/internal/monitoring"
)

// Stats accumulates relay traffic counters between periodic log reports.
type Stats struct {
	mu            sync.Mutex
	packetCount   int64
	byteCount     int64
	decodeErrors  int64
	requestCount  int64
	responseCount int64
	sendErrors    int64
	lastReset     time.Time
}

// NewStats creates a zeroed counter set.
func NewStats() *Stats {
	return &Stats{lastReset: time.Now()}
}

// AddPacket records one received datagram.
func (s *Stats) AddPacket(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetCount++
	s.byteCount += int64(bytes)
}

// AddDecodeError records a datagram dropped as undecodable.
func (s *Stats) AddDecodeError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decodeErrors++
}

// AddRequest records one request forwarded to the runner.
func (s *Stats) AddRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestCount++
}

// AddResponse records one response transmitted.
func (s *Stats) AddResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseCount++
}

// AddSendError records a response datagram that failed to transmit.
func (s *Stats) AddSendError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErrors++
}

// GetAndReset returns the counters since the last reset and zeroes them.
func (s *Stats) GetAndReset() (packets, bytes, decodeErrors, requests, responses, sendErrors int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration = now.Sub(s.lastReset)
	packets = s.packetCount
	bytes = s.byteCount
	decodeErrors = s.decodeErrors
	requests = s.requestCount
	responses = s.responseCount
	sendErrors = s.sendErrors

	s.packetCount = 0
	s.byteCount = 0
	s.decodeErrors = 0
	s.requestCount = 0
	s.responseCount = 0
	s.sendErrors = 0
	s.lastReset = now
	return
}

// LogStats emits one summary line for the elapsed interval.
func (s *Stats) LogStats() {
	packets, bytes, decodeErrors, requests, responses, sendErrors, duration := s.GetAndReset()
	monitoring.Logf("relay stats: %d packets (%d bytes) in %v, %d requests, %d responses, %d decode errors, %d send errors",
		packets, bytes, duration.Round(time.Second), requests, responses, decodeErrors, sendErrors)
}

// logPeriodically reports stats on the given interval until ctx is done. An
// early first report avoids a long silence right after startup.
func (s *Stats) logPeriodically(ctx context.Context, interval time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		s.LogStats()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.LogStats()
		}
	}
}
