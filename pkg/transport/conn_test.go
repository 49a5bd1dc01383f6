package transport

import (
	"net"
	"sync"
	"testing"
	"time"
)

// dropNConn wraps a net.PacketConn and silently drops the first n outgoing
// datagrams for which match returns true, forwarding every other write
// untouched. It lets a test simulate a single lost control packet (SYN, the
// final handshake ACK, or FIN) without the probabilistic ImpairedConn.
type dropNConn struct {
	net.PacketConn
	match func(p *Packet) bool
	n     int

	mu      sync.Mutex
	dropped int
}

func (c *dropNConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	p, err := Decode(b)
	if err == nil && c.match(p) {
		c.mu.Lock()
		if c.dropped < c.n {
			c.dropped++
			c.mu.Unlock()
			return len(b), nil
		}
		c.mu.Unlock()
	}
	return c.PacketConn.WriteTo(b, addr)
}

func fastSettings() Settings {
	return Settings{Timeout: 50 * time.Millisecond, FlowControlWindow: FlowControlWindowSize}
}

func isSynOnly(p *Packet) bool { return p.Flags == FlagSYN }
func isAckOnly(p *Packet) bool { return p.Flags == FlagACK }
func isFinOnly(p *Packet) bool { return p.Flags == FlagFIN }

func TestClientHandshakeRecoversFromLostSyn(t *testing.T) {
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen server: %v", err)
	}
	defer serverConn.Close()

	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen client: %v", err)
	}
	defer clientConn.Close()

	lossy := &dropNConn{PacketConn: clientConn, match: isSynOnly, n: 2}

	serverDone := make(chan error, 1)
	go func() {
		_, err := ServerHandshake(serverConn, fastSettings())
		serverDone <- err
	}()

	next, err := ClientHandshake(lossy, serverConn.LocalAddr(), fastSettings())
	if err != nil {
		t.Fatalf("ClientHandshake: %v", err)
	}
	if next != 1 {
		t.Fatalf("next seq = %d, want 1", next)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("ServerHandshake: %v", err)
	}
	if lossy.dropped != 2 {
		t.Fatalf("dropped %d SYNs, want exactly 2", lossy.dropped)
	}
}

func TestClientHandshakeRecoversFromLostFinalAck(t *testing.T) {
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen server: %v", err)
	}
	defer serverConn.Close()

	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen client: %v", err)
	}
	defer clientConn.Close()

	// Drop the client's first two final-ACK datagrams: ServerHandshake must
	// see no ACK and retransmit SYN|ACK, which ClientHandshake's confirm
	// loop must recognize as "the ACK was lost" and resend it.
	lossy := &dropNConn{PacketConn: clientConn, match: isAckOnly, n: 2}

	serverDone := make(chan error, 1)
	go func() {
		_, err := ServerHandshake(serverConn, fastSettings())
		serverDone <- err
	}()

	next, err := ClientHandshake(lossy, serverConn.LocalAddr(), fastSettings())
	if err != nil {
		t.Fatalf("ClientHandshake: %v", err)
	}
	if next != 1 {
		t.Fatalf("next seq = %d, want 1", next)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("ServerHandshake: %v", err)
	}
	if lossy.dropped != 2 {
		t.Fatalf("dropped %d ACKs, want exactly 2", lossy.dropped)
	}
}

func TestClientHandshakeFailsAfterExhaustingRetries(t *testing.T) {
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen server: %v", err)
	}
	defer serverConn.Close()

	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen client: %v", err)
	}
	defer clientConn.Close()

	// Every SYN is dropped: the client must give up after MaxHandshakeRetries
	// rather than retrying forever.
	lossy := &dropNConn{PacketConn: clientConn, match: isSynOnly, n: 1 << 30}

	go ServerHandshake(serverConn, fastSettings())

	_, err = ClientHandshake(lossy, serverConn.LocalAddr(), fastSettings())
	if err == nil {
		t.Fatal("expected ClientHandshake to fail when every SYN is lost")
	}
}

func TestClientTeardownRecoversFromLostFin(t *testing.T) {
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen server: %v", err)
	}
	defer serverConn.Close()

	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen client: %v", err)
	}
	defer clientConn.Close()

	settings := fastSettings()

	hsDone := make(chan struct{})
	var addr net.Addr
	var hsErr error
	go func() {
		addr, hsErr = ServerHandshake(serverConn, settings)
		close(hsDone)
	}()
	if _, err := ClientHandshake(clientConn, serverConn.LocalAddr(), settings); err != nil {
		t.Fatalf("ClientHandshake: %v", err)
	}
	<-hsDone
	if hsErr != nil {
		t.Fatalf("ServerHandshake: %v", hsErr)
	}

	// Drop the client's first two FIN datagrams: ServerTeardown never sees
	// them, so ClientTeardown must retry up to MaxHandshakeRetries.
	lossy := &dropNConn{PacketConn: clientConn, match: isFinOnly, n: 2}

	serverDone := make(chan error, 1)
	go func() {
		buf := make([]byte, MaxBufferSize)
		for {
			n, from, err := serverConn.ReadFrom(buf)
			if err != nil {
				serverDone <- err
				return
			}
			if from.String() != addr.String() {
				continue
			}
			p, err := Decode(buf[:n])
			if err != nil || !Verify(p) || p.Flags&FlagFIN == 0 {
				continue
			}
			serverDone <- ServerTeardown(serverConn, addr, p.SeqNum, settings)
			return
		}
	}()

	if err := ClientTeardown(lossy, serverConn.LocalAddr(), 1, settings); err != nil {
		t.Fatalf("ClientTeardown: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("ServerTeardown: %v", err)
	}
	if lossy.dropped != 2 {
		t.Fatalf("dropped %d FINs, want exactly 2", lossy.dropped)
	}
}
