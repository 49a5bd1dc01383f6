package transport

import (
	"time"

	"reliable-transfer-go/pkg/logger"
)

// ackReceiverTask is the sender-side concurrent unit described in spec.md
// section 4.6: it reads ACK datagrams and feeds the Sender's RenoController
// and send window under the shared lock, independent of the main step.
type ackReceiverTask struct {
	s    *Sender
	done chan struct{}
}

func newAckReceiverTask(s *Sender) *ackReceiverTask {
	return &ackReceiverTask{s: s, done: make(chan struct{})}
}

func (t *ackReceiverTask) run() {
	defer close(t.done)

	buf := make([]byte, MaxBufferSize)
	for {
		if t.s.isComplete() {
			return
		}

		t.s.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		n, addr, err := t.s.conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		if addr.String() != t.s.addr.String() {
			continue
		}

		p, err := Decode(buf[:n])
		if err != nil {
			continue
		}
		if !Verify(p) {
			continue
		}
		if p.Flags&FlagACK == 0 {
			continue
		}
		if p.Flags&(FlagSYN|FlagFIN) != 0 {
			// A retransmitted SYN|ACK or ACK|FIN also carries FlagACK but
			// is a handshake/teardown control packet, not a data ACK; a
			// lost final handshake ACK must never be mistaken for a
			// cumulative ACK of in-flight data (it would silently prune
			// the send window past data that was never delivered).
			continue
		}

		logger.Debug("[%s] ack recv ack_num=%d", t.s.id, p.AckNum)
		t.s.handleAck(p.AckNum)
	}
}

// join blocks until the ACK task has observed transmission completion and
// returned.
func (t *ackReceiverTask) join() {
	<-t.done
}
