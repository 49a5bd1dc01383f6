package transport

import (
	"fmt"
	"net"
	"time"
)

// ConnState is a connection's position in the lifecycle named in spec.md
// section 3: CLOSED -> SYN-SENT / LISTEN -> ESTABLISHED -> FIN-WAIT -> CLOSED.
type ConnState int

const (
	StateClosed ConnState = iota
	StateSynSent
	StateListen
	StateEstablished
	StateFinWait
)

// MaxHandshakeRetries bounds the retry mitigation spec.md section 9
// recommends for control packets: the reference has none, which is brittle
// against a lost SYN/ACK/FIN, so every control packet here is retried up to
// this many times on the same configured timeout clock before the
// handshake or teardown is reported as failed.
const MaxHandshakeRetries = 5

func controlPacket(seq, ack uint32, flags uint16, windowSize uint16) *Packet {
	return &Packet{SeqNum: seq, AckNum: ack, Flags: flags, WindowSize: windowSize}
}

func sendControl(conn net.PacketConn, addr net.Addr, seq, ack uint32, flags uint16, windowSize uint16) error {
	p := controlPacket(seq, ack, flags, windowSize)
	p.Checksum = ComputeChecksum(p)
	_, err := conn.WriteTo(Encode(p), addr)
	return err
}

// readControlWithDeadline reads one datagram from conn within timeout,
// decodes and verifies it, and reports whether it carries all of wantFlags.
// Malformed or checksum-failed datagrams are treated like a timeout: the
// caller retries.
func readControlWithDeadline(conn net.PacketConn, timeout time.Duration, wantFlags uint16) (*Packet, net.Addr, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, err
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, MaxBufferSize)
	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		return nil, nil, err
	}
	p, err := Decode(buf[:n])
	if err != nil {
		return nil, nil, err
	}
	if !Verify(p) {
		return nil, nil, &ErrMalformed{Reason: "checksum mismatch"}
	}
	if p.Flags&wantFlags != wantFlags {
		return nil, nil, fmt.Errorf("unexpected flags 0x%x, want 0x%x", p.Flags, wantFlags)
	}
	return p, addr, nil
}

// ClientHandshake performs the sender-initiated three-way establishment
// (spec.md section 4.2) against addr over conn, using settings' timeout as
// the per-attempt deadline and window size. On success it returns the data
// sequence number to begin transmission at (always 1).
func ClientHandshake(conn net.PacketConn, addr net.Addr, settings Settings) (uint32, error) {
	windowSize := uint16(settings.FlowControlWindow)
	var ackNum uint32
	synConfirmed := false

	for attempt := 0; attempt <= MaxHandshakeRetries; attempt++ {
		if err := sendControl(conn, addr, 0, 0, FlagSYN, windowSize); err != nil {
			return 0, fmt.Errorf("send SYN: %w", err)
		}

		reply, _, err := readControlWithDeadline(conn, settings.Timeout, FlagSYN|FlagACK)
		if err != nil {
			continue
		}

		ackNum = reply.SeqNum + 1
		synConfirmed = true
		break
	}
	if !synConfirmed {
		return 0, fmt.Errorf("handshake failed after %d attempts", MaxHandshakeRetries+1)
	}

	// The final ACK is retried exactly like every other control packet: if
	// it is lost, ServerHandshake keeps retransmitting SYN|ACK, which shows
	// up here as another matching read, and we resend the ACK. Only once a
	// full timeout window passes with no further SYN|ACK do we conclude the
	// ACK landed and the connection is established.
	for attempt := 0; attempt <= MaxHandshakeRetries; attempt++ {
		if err := sendControl(conn, addr, 1, ackNum, FlagACK, windowSize); err != nil {
			return 0, fmt.Errorf("send ACK: %w", err)
		}

		_, _, err := readControlWithDeadline(conn, settings.Timeout, FlagSYN|FlagACK)
		if err != nil {
			return 1, nil
		}
		// Another SYN|ACK arrived: the server never saw our ACK. Loop and
		// resend it.
	}
	return 0, fmt.Errorf("handshake ack confirmation failed after %d attempts", MaxHandshakeRetries+1)
}

// ServerHandshake waits for an inbound SYN on conn (any sender), replies
// SYN|ACK, and waits (with bounded retry of the reply) for the final ACK.
// It returns the remote address of the now-established peer.
func ServerHandshake(conn net.PacketConn, settings Settings) (net.Addr, error) {
	windowSize := uint16(settings.FlowControlWindow)
	buf := make([]byte, MaxBufferSize)
	var peer net.Addr
	var synSeq uint32

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return nil, fmt.Errorf("read SYN: %w", err)
		}
		p, err := Decode(buf[:n])
		if err != nil || !Verify(p) || p.Flags&FlagSYN == 0 {
			continue
		}
		peer = addr
		synSeq = p.SeqNum
		break
	}

	for attempt := 0; attempt <= MaxHandshakeRetries; attempt++ {
		if err := sendControl(conn, peer, 0, synSeq+1, FlagSYN|FlagACK, windowSize); err != nil {
			return nil, fmt.Errorf("send SYN-ACK: %w", err)
		}

		reply, replyAddr, err := readControlWithDeadline(conn, settings.Timeout, FlagACK)
		if err != nil {
			continue
		}
		if replyAddr.String() != peer.String() {
			continue
		}
		_ = reply
		return peer, nil
	}
	return nil, fmt.Errorf("handshake failed after %d attempts", MaxHandshakeRetries+1)
}

// ClientTeardown sends FIN with the given sequence number and waits (with
// bounded retry) for the receiver's ACK|FIN, completing the four-way
// teardown from the sender's side (spec.md section 4.2).
func ClientTeardown(conn net.PacketConn, addr net.Addr, seq uint32, settings Settings) error {
	windowSize := uint16(settings.FlowControlWindow)
	for attempt := 0; attempt <= MaxHandshakeRetries; attempt++ {
		if err := sendControl(conn, addr, seq, 0, FlagFIN, windowSize); err != nil {
			return fmt.Errorf("send FIN: %w", err)
		}

		reply, _, err := readControlWithDeadline(conn, settings.Timeout, FlagACK|FlagFIN)
		if err != nil {
			continue
		}
		if reply.AckNum == seq+1 {
			return nil
		}
	}
	return fmt.Errorf("teardown failed after %d attempts", MaxHandshakeRetries+1)
}

// ServerTeardown replies to a received FIN with ACK|FIN, completing the
// receiver's side of the four-way teardown. It waits one timeout window
// after each reply and resends the ACK|FIN (up to MaxHandshakeRetries
// times) whenever the sender's FIN arrives again.
func ServerTeardown(conn net.PacketConn, addr net.Addr, finSeq uint32, settings Settings) error {
	windowSize := uint16(settings.FlowControlWindow)
	for attempt := 0; attempt <= MaxHandshakeRetries; attempt++ {
		if err := sendControl(conn, addr, 0, finSeq+1, FlagACK|FlagFIN, windowSize); err != nil {
			return err
		}
		// A repeated FIN within one timeout window means the ACK|FIN was
		// lost: resend it. Silence means it arrived.
		if _, _, err := readControlWithDeadline(conn, settings.Timeout, FlagFIN); err != nil {
			return nil
		}
	}
	return fmt.Errorf("teardown ack confirmation failed after %d attempts", MaxHandshakeRetries+1)
}
