package transport

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/xid"

	"reliable-transfer-go/pkg/logger"
)

// Sender partitions a finite byte source into data packets, drives the
// sliding send window with timeout and fast-retransmit, and adjusts the
// effective congestion window via an embedded RenoController. Per spec.md
// section 5, the window, send_base, next_seq, and the Reno aggregate are
// all protected by a single mutex shared with the concurrent AckReceiverTask;
// a condition variable wakes the main step promptly on fast retransmit.
type Sender struct {
	conn net.PacketConn
	addr net.Addr

	mu   sync.Mutex
	cond *sync.Cond

	window   *sendWindow
	sendBase uint32
	nextSeq  uint32
	reno     *RenoController

	settings Settings

	transmissionComplete bool

	stats *TransferStats
	id    string
}

// NewSender establishes a connection to addr over conn (three-way
// handshake) and returns a Sender ready to transmit data starting at
// seq_num 1. settings governs the retransmission timeout and the flow
// control window advertised and enforced for this connection.
func NewSender(conn net.PacketConn, addr net.Addr, settings Settings) (*Sender, error) {
	next, err := ClientHandshake(conn, addr, settings)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	id := xid.New().String()
	s := &Sender{
		conn:     conn,
		addr:     addr,
		window:   newSendWindow(),
		sendBase: next,
		nextSeq:  next,
		reno:     NewRenoController(settings.FlowControlWindow),
		settings: settings,
		stats:    NewTransferStats(id),
		id:       id,
	}
	s.cond = sync.NewCond(&s.mu)
	logger.Info("[%s] connected to %s", id, addr.String())
	return s, nil
}

// Stats returns the sender's live transfer statistics.
func (s *Sender) Stats() *TransferStats { return s.stats }

// SendAll partitions source into packets of up to MaxDataSize bytes and drives
// them to completion: admission, retransmission, and final FIN teardown.
// progress, if non-nil, is invoked after every packet admitted with the
// cumulative number of bytes read from source so far.
func (s *Sender) SendAll(source io.Reader, progress func(sent int64)) error {
	ackTask := newAckReceiverTask(s)
	go ackTask.run()

	var totalRead int64
	buf := make([]byte, MaxDataSize)
	inputDone := false

	for {
		s.mu.Lock()

		if !inputDone || s.window.size() > 0 {
			fastRetransmitted := false
			if target, ok := s.reno.DrainFastRetransmit(); ok {
				if e, ok := s.window.get(target); ok {
					s.retransmitLocked(e)
					fastRetransmitted = true
				}
				// target was already pruned by an interleaved new ACK: fall
				// through to the timeout scan below instead of doing
				// nothing this iteration (spec.md section 4.4 step 3).
			}
			if !fastRetransmitted {
				for _, seq := range s.window.timedOut(time.Now(), s.settings.Timeout) {
					if e, ok := s.window.get(seq); ok {
						s.retransmitLocked(e)
						s.reno.OnTimeout()
					}
				}
			}

			for !inputDone && s.window.size() < s.reno.EffectiveWindow() {
				n, err := source.Read(buf)
				if n > 0 {
					payload := make([]byte, n)
					copy(payload, buf[:n])
					s.admitLocked(payload)
					totalRead += int64(n)
					if progress != nil {
						progress(totalRead)
					}
				}
				if err != nil {
					inputDone = true
					break
				}
				if n == 0 {
					break
				}
			}
		}

		done := inputDone && s.window.size() == 0
		if done {
			s.transmissionComplete = true
			s.cond.Broadcast()
		}
		s.mu.Unlock()

		if done {
			break
		}

		s.waitForEvent()
	}

	ackTask.join()

	finSeq := s.nextSeqSnapshot()
	if err := ClientTeardown(s.conn, s.addr, finSeq, s.settings); err != nil {
		return fmt.Errorf("teardown: %w", err)
	}
	s.stats.MarkDone()
	logger.Success("[%s] transfer complete: %d bytes, %d retransmissions", s.id, totalRead, s.stats.Snapshot().Retransmissions)
	return nil
}

func (s *Sender) nextSeqSnapshot() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// admitLocked builds and sends a new data packet, inserting it into the
// send window. Caller must hold s.mu.
func (s *Sender) admitLocked(payload []byte) {
	seq := s.nextSeq
	p := &Packet{SeqNum: seq, AckNum: 0, Flags: 0, WindowSize: uint16(s.settings.FlowControlWindow), Data: payload}
	p.Checksum = ComputeChecksum(p)
	encoded := Encode(p)

	now := time.Now()
	if _, err := s.conn.WriteTo(encoded, s.addr); err != nil {
		logger.Warn("[%s] send seq=%d failed: %v", s.id, seq, err)
	}
	s.window.insert(seq, encoded, now)
	s.nextSeq++

	s.stats.IncPacketsSent()
	s.stats.AddBytes(len(payload))
}

// retransmitLocked resends an already-encoded window entry and refreshes
// its send timestamp. Caller must hold s.mu.
func (s *Sender) retransmitLocked(e *sendWindowEntry) {
	if _, err := s.conn.WriteTo(e.encoded, s.addr); err != nil {
		logger.Warn("[%s] retransmit seq=%d failed: %v", s.id, e.seq, err)
	}
	e.sentAt = time.Now()
	e.resentAt++
	logger.Debug("[%s] retransmit seq=%d attempt=%d", s.id, e.seq, e.resentAt)
	s.stats.IncRetransmissions()
}

// waitForEvent blocks for up to ~10ms or until the ACK task signals a new
// ACK or fast-retransmit trigger, whichever comes first (spec.md section
// 4.4 step 4).
func (s *Sender) waitForEvent() {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		timer := time.AfterFunc(10*time.Millisecond, func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		s.cond.Wait()
		timer.Stop()
		close(done)
	}()
	<-done
}

// handleAck processes one ACK received by the AckReceiverTask: feeds the
// RenoController and prunes the send window. Caller must NOT hold s.mu.
func (s *Sender) handleAck(ackNum uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.IncAcksReceived()

	if ackNum >= s.sendBase {
		s.reno.OnNewAck()
		s.window.pruneUpTo(ackNum)
		s.sendBase = ackNum + 1
	} else {
		s.reno.OnDupAck(s.sendBase)
	}

	s.cond.Broadcast()
}

func (s *Sender) isComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transmissionComplete && s.window.size() == 0
}

// CongestionSnapshot is a point-in-time read of the sender's Reno state,
// exposed for the metrics collector.
type CongestionSnapshot struct {
	Cwnd     float64
	Ssthresh float64
	State    string
	DupAcks  uint32
	InFlight int
}

// Congestion returns the sender's current congestion-control snapshot.
func (s *Sender) Congestion() CongestionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CongestionSnapshot{
		Cwnd:     s.reno.Cwnd(),
		Ssthresh: s.reno.Ssthresh(),
		State:    s.reno.State().String(),
		DupAcks:  s.reno.DupAcks(),
		InFlight: s.window.size(),
	}
}
