package transport

import (
	"math/rand"
	"net"
	"sync"
	"time"
)

// ImpairmentConfig controls the probabilities/behaviors ImpairedConn applies
// to outgoing datagrams. Zero value is a no-op passthrough.
type ImpairmentConfig struct {
	LossProbability      float64 // 0..1, datagram dropped entirely
	CorruptProbability   float64 // 0..1, single random bit flipped
	DuplicateProbability float64 // 0..1, datagram written twice
	ReorderEvery         int     // every Nth datagram swaps places with the one before it; 0 disables
	Seed                 int64
}

// ImpairedConn decorates a net.PacketConn, applying the configured
// loss/corruption/duplication/reordering to writes; reads pass through
// unchanged. It is used by this package's integration tests, by the sender
// CLI's opt-in -impair developer flag (SPEC_FULL.md section 4.9), and by
// cmd/router on its receiver-facing socket.
type ImpairedConn struct {
	net.PacketConn
	cfg ImpairmentConfig
	rng *rand.Rand

	mu    sync.Mutex
	count int
	held  *pendingWrite
}

type pendingWrite struct {
	buf  []byte
	addr net.Addr
}

// NewImpairedConn wraps conn with the given impairment configuration.
func NewImpairedConn(conn net.PacketConn, cfg ImpairmentConfig) *ImpairedConn {
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &ImpairedConn{
		PacketConn: conn,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (c *ImpairedConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	n := c.count
	cfg := c.cfg

	if cfg.LossProbability > 0 && c.rng.Float64() < cfg.LossProbability {
		return len(b), nil
	}

	out := make([]byte, len(b))
	copy(out, b)
	if cfg.CorruptProbability > 0 && c.rng.Float64() < cfg.CorruptProbability {
		bit := c.rng.Intn(len(out) * 8)
		out[bit/8] ^= 1 << uint(bit%8)
	}

	if cfg.DuplicateProbability > 0 && c.rng.Float64() < cfg.DuplicateProbability {
		defer c.PacketConn.WriteTo(out, addr)
	}

	if cfg.ReorderEvery <= 0 {
		return c.PacketConn.WriteTo(out, addr)
	}

	current := &pendingWrite{buf: out, addr: addr}
	shouldSwap := n%cfg.ReorderEvery == 0 && c.held != nil

	if shouldSwap {
		prev := c.held
		c.held = nil
		if _, err := c.PacketConn.WriteTo(current.buf, current.addr); err != nil {
			return 0, err
		}
		time.Sleep(time.Millisecond)
		return c.PacketConn.WriteTo(prev.buf, prev.addr)
	}

	if c.held == nil {
		c.held = current
		return len(b), nil
	}

	prev := c.held
	c.held = current
	return c.PacketConn.WriteTo(prev.buf, prev.addr)
}

// Flush writes out any datagram still held back for potential reordering.
// Callers should invoke it once the sender has no more data to send, so the
// final packet (FIN included) is not silently swallowed.
func (c *ImpairedConn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held == nil {
		return nil
	}
	held := c.held
	c.held = nil
	_, err := c.PacketConn.WriteTo(held.buf, held.addr)
	return err
}
