package transport

import (
	"fmt"
	"io"
	"net"

	"github.com/rs/xid"

	"reliable-transfer-go/pkg/logger"
)

// Receiver validates incoming data packets, maintains an expected_seq
// cursor and a selective out-of-order buffer, writes the contiguous prefix
// to a sink, and emits a cumulative ACK on every received data packet
// (spec.md section 4.3). The receiver is single-threaded (spec.md
// section 5): one goroutine runs Serve.
type Receiver struct {
	conn net.PacketConn
	addr net.Addr

	expectedSeq uint32
	buffer      *receiveBuffer
	settings    Settings

	stats *TransferStats
	id    string
}

// Accept waits for and completes a sender-initiated three-way handshake on
// conn, returning a Receiver bound to the connecting peer's address.
// settings governs the handshake/teardown timeout and the receive buffer's
// capacity.
func Accept(conn net.PacketConn, settings Settings) (*Receiver, error) {
	addr, err := ServerHandshake(conn, settings)
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}

	id := xid.New().String()
	r := &Receiver{
		conn:        conn,
		addr:        addr,
		expectedSeq: 1,
		buffer:      newReceiveBuffer(settings.FlowControlWindow),
		settings:    settings,
		stats:       NewTransferStats(id),
		id:          id,
	}
	logger.Info("[%s] accepted connection from %s", id, addr.String())
	return r, nil
}

// Stats returns the receiver's live transfer statistics.
func (r *Receiver) Stats() *TransferStats { return r.stats }

// Serve runs the ingest loop until a FIN is received and acknowledged,
// writing the in-order byte stream to sink. It returns once teardown is
// complete.
func (r *Receiver) Serve(sink io.Writer) error {
	buf := make([]byte, MaxBufferSize)

	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if addr.String() != r.addr.String() {
			continue
		}

		p, err := Decode(buf[:n])
		if err != nil {
			logger.Debug("[%s] discarding malformed packet: %v", r.id, err)
			continue
		}
		if !Verify(p) {
			logger.Debug("[%s] discarding packet seq=%d: checksum mismatch", r.id, p.SeqNum)
			continue
		}

		r.stats.IncPacketsReceived()

		if p.Flags&FlagFIN != 0 {
			if err := ServerTeardown(r.conn, r.addr, p.SeqNum, r.settings); err != nil {
				return fmt.Errorf("teardown: %w", err)
			}
			r.stats.MarkDone()
			logger.Success("[%s] transfer complete: %d bytes received", r.id, r.stats.Snapshot().BytesTransferred)
			return nil
		}

		if err := r.handleData(p, sink); err != nil {
			return err
		}
		r.ack()
	}
}

// handleData implements the delivery rule in spec.md section 4.3.
func (r *Receiver) handleData(p *Packet, sink io.Writer) error {
	switch {
	case p.SeqNum == r.expectedSeq:
		if err := r.deliver(p.Data, sink); err != nil {
			return err
		}
		r.expectedSeq++

		for {
			payload, ok := r.buffer.pop(r.expectedSeq)
			if !ok {
				break
			}
			if err := r.deliver(payload, sink); err != nil {
				return err
			}
			r.expectedSeq++
		}

	case p.SeqNum > r.expectedSeq:
		if _, existed := r.buffer.packets[p.SeqNum]; !existed {
			r.stats.IncOutOfOrder()
		}
		accepted := r.buffer.insert(p.SeqNum, p.Data)
		logger.Debug("[%s] buffered out-of-order seq=%d accepted=%v buffered=%d", r.id, p.SeqNum, accepted, r.buffer.len())

	default: // p.SeqNum < r.expectedSeq: already delivered
		r.stats.IncDuplicate()
	}
	return nil
}

func (r *Receiver) deliver(payload []byte, sink io.Writer) error {
	if len(payload) == 0 {
		return nil
	}
	if _, err := sink.Write(payload); err != nil {
		return fmt.Errorf("write sink: %w", err)
	}
	r.stats.AddBytes(len(payload))
	return nil
}

// ack emits exactly one cumulative ACK naming the highest in-order sequence
// delivered so far (spec.md section 4.3).
func (r *Receiver) ack() {
	ackNum := r.expectedSeq - 1
	if err := sendControl(r.conn, r.addr, 0, ackNum, FlagACK, uint16(r.settings.FlowControlWindow)); err != nil {
		logger.Warn("[%s] send ack failed: %v", r.id, err)
	}
}
