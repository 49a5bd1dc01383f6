package transport

import (
	"sync"
	"time"
)

// TransferStats accumulates the statistics spec.md section 7 promises the
// caller on completion. Both Sender and Receiver embed one and keep it
// current as the transfer progresses, so it doubles as a live source for
// the Prometheus collector in pkg/metrics.
type TransferStats struct {
	mu sync.Mutex

	ConnectionID      string
	PacketsSent       uint64
	PacketsReceived   uint64
	Retransmissions   uint64
	AcksReceived      uint64
	OutOfOrderPackets uint64
	DuplicatePackets  uint64
	BytesTransferred  uint64
	StartTime         time.Time
	EndTime           time.Time
}

func NewTransferStats(connectionID string) *TransferStats {
	return &TransferStats{ConnectionID: connectionID, StartTime: time.Now()}
}

func (s *TransferStats) IncPacketsSent()       { s.mu.Lock(); s.PacketsSent++; s.mu.Unlock() }
func (s *TransferStats) IncPacketsReceived()   { s.mu.Lock(); s.PacketsReceived++; s.mu.Unlock() }
func (s *TransferStats) IncRetransmissions()   { s.mu.Lock(); s.Retransmissions++; s.mu.Unlock() }
func (s *TransferStats) IncAcksReceived()      { s.mu.Lock(); s.AcksReceived++; s.mu.Unlock() }
func (s *TransferStats) IncOutOfOrder()        { s.mu.Lock(); s.OutOfOrderPackets++; s.mu.Unlock() }
func (s *TransferStats) IncDuplicate()         { s.mu.Lock(); s.DuplicatePackets++; s.mu.Unlock() }
func (s *TransferStats) AddBytes(n int) {
	s.mu.Lock()
	s.BytesTransferred += uint64(n)
	s.mu.Unlock()
}

func (s *TransferStats) MarkDone() {
	s.mu.Lock()
	s.EndTime = time.Now()
	s.mu.Unlock()
}

// Snapshot returns a copy of the stats safe to read without holding the
// internal lock further.
func (s *TransferStats) Snapshot() TransferStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s
	cp.mu = sync.Mutex{}
	return cp
}

// LossRate is Retransmissions / max(1, PacketsSent).
func (s *TransferStats) LossRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := s.PacketsSent
	if sent == 0 {
		sent = 1
	}
	return float64(s.Retransmissions) / float64(sent)
}

// Elapsed returns EndTime-StartTime if the transfer completed, otherwise
// time.Since(StartTime).
func (s *TransferStats) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}
