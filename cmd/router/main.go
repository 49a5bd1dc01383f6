// Command router is the optional impairment-simulating middlebox named in
// SPEC_FULL.md section 6.1: a standalone UDP relay that sits between a
// sender and receiver, forwarding datagrams in both directions and applying
// ImpairedConn's loss/corruption/duplication/reordering to the
// sender-to-receiver leg, so they can be exercised end-to-end without
// either peer's CLI knowing a relay is present.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sync"

	"reliable-transfer-go/pkg/config"
	"reliable-transfer-go/pkg/logger"
	"reliable-transfer-go/pkg/transport"
)

func run() error {
	configPath := flag.String("config", config.DefaultFilename, "path to transfer.yml")
	listenAddr := flag.String("listen", "", "address the router accepts sender traffic on (overrides config router_port)")
	upstream := flag.String("upstream", "", "receiver host:port the router forwards to (required)")
	logLevel := flag.String("log-level", "", "debug|info|warn|error (overrides config)")
	lossProb := flag.Float64("loss", 0.05, "probability a relayed datagram is dropped")
	corruptProb := flag.Float64("corrupt", 0.02, "probability a relayed datagram has one bit flipped")
	dupProb := flag.Float64("duplicate", 0.02, "probability a relayed datagram is written twice")
	reorderEvery := flag.Int("reorder-every", 7, "every Nth datagram swaps places with the previous one; 0 disables")
	seed := flag.Int64("seed", 42, "impairment RNG seed")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `router - impairment-simulating relay between a sender and receiver

USAGE:
  router -upstream host:port [flags]

FLAGS:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *upstream == "" {
		flag.Usage()
		return fmt.Errorf("missing -upstream")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger.SetLevelName(cfg.LogLevel)

	addr := *listenAddr
	if addr == "" {
		addr = cfg.RouterAddr()
	}

	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	uaddr, err := net.ResolveUDPAddr("udp", *upstream)
	if err != nil {
		return fmt.Errorf("resolve upstream %s: %w", *upstream, err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	defer conn.Close()

	upstreamConn, err := net.ListenPacket("udp", "0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("open upstream socket: %w", err)
	}
	defer upstreamConn.Close()

	impairCfg := transport.ImpairmentConfig{
		LossProbability:      *lossProb,
		CorruptProbability:   *corruptProb,
		DuplicateProbability: *dupProb,
		ReorderEvery:         *reorderEvery,
		Seed:                 *seed,
	}
	impairedUpstream := transport.NewImpairedConn(upstreamConn, impairCfg)

	logger.Banner("reliable-transfer-go router", "1.0.0")
	logger.InfoCyan("relaying %s <-> %s", addr, *upstream)

	relay(conn, impairedUpstream, uaddr)
	return nil
}

// relay forwards every datagram from the client-facing conn to upstream
// through impairedUpstream (applying loss/corruption/duplication/reordering
// to that leg only), and every reply from upstream straight back to
// whichever client address last sent a datagram. A single client peer is
// tracked at a time, matching this protocol's one-sender-per-connection
// lifecycle (spec.md section 5).
func relay(conn net.PacketConn, impairedUpstream *transport.ImpairedConn, upstream net.Addr) {
	var mu sync.Mutex
	var clientAddr net.Addr

	go func() {
		buf := make([]byte, transport.MaxBufferSize)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			mu.Lock()
			clientAddr = addr
			mu.Unlock()
			if _, err := impairedUpstream.WriteTo(buf[:n], upstream); err != nil {
				logger.Warn("router: forward to upstream failed: %v", err)
			}
		}
	}()

	buf := make([]byte, transport.MaxBufferSize)
	for {
		n, addr, err := impairedUpstream.ReadFrom(buf)
		if err != nil {
			return
		}
		if addr.String() != upstream.String() {
			continue
		}
		mu.Lock()
		dst := clientAddr
		mu.Unlock()
		if dst == nil {
			continue
		}
		if _, err := conn.WriteTo(buf[:n], dst); err != nil {
			logger.Warn("router: forward to client failed: %v", err)
		}
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "router: %v\n", err)
		os.Exit(1)
	}
}
