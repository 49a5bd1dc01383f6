package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/schollz/progressbar/v3"

	"reliable-transfer-go/pkg/config"
	"reliable-transfer-go/pkg/logger"
	"reliable-transfer-go/pkg/metrics"
	"reliable-transfer-go/pkg/transport"
)

func run() error {
	addr := flag.String("addr", "", "receiver host:port (overrides config host/port)")
	file := flag.String("file", "", "path to the file to send")
	configPath := flag.String("config", config.DefaultFilename, "path to transfer.yml")
	metricsAddr := flag.String("metrics-addr", "", "address for the /metrics endpoint (overrides config, empty disables)")
	impair := flag.Bool("impair", false, "wrap the socket in a lossy/reordering/corrupting dev decorator")
	logLevel := flag.String("log-level", "", "debug|info|warn|error (overrides config)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `sender - push a file over the reliable transfer protocol

USAGE:
  sender -addr host:port -file path [flags]

FLAGS:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *file == "" {
		flag.Usage()
		return fmt.Errorf("missing -file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		host, port, err := net.SplitHostPort(*addr)
		if err != nil {
			return fmt.Errorf("parse -addr: %w", err)
		}
		cfg.Host = host
		fmt.Sscanf(port, "%d", &cfg.Port)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger.SetLevelName(cfg.LogLevel)

	logger.Banner("reliable-transfer-go sender", "1.0.0")

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open %s: %w", *file, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", *file, err)
	}

	raddr, err := net.ResolveUDPAddr("udp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("resolve %s: %w", cfg.Addr(), err)
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	defer conn.Close()

	var packetConn net.PacketConn = conn
	if *impair {
		logger.Warn("impairment simulator enabled: this connection is NOT a faithful network path")
		packetConn = transport.NewImpairedConn(conn, transport.ImpairmentConfig{
			LossProbability:      0.05,
			CorruptProbability:   0.02,
			DuplicateProbability: 0.02,
			ReorderEvery:         7,
			Seed:                 42,
		})
	}

	logger.Section("connecting")
	sender, err := transport.NewSender(packetConn, raddr, cfg.TransportSettings())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if cfg.MetricsAddr != "" {
		errc := make(chan error, 1)
		metrics.Serve(cfg.MetricsAddr, metrics.NewCollector(sender.Stats(), sender), errc)
		logger.Info("metrics listening on %s", cfg.MetricsAddr)
	}

	bar := progressbar.DefaultBytes(info.Size(), "sending")

	logger.Section("transferring")
	var lastSent int64
	err = sender.SendAll(f, func(sent int64) {
		bar.Add64(sent - lastSent)
		lastSent = sent
	})
	if ic, ok := packetConn.(*transport.ImpairedConn); ok {
		ic.Flush()
	}
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	snap := sender.Stats().Snapshot()
	logger.Info("sent %d bytes in %s, %d retransmissions, loss rate %.2f%%",
		snap.BytesTransferred, sender.Stats().Elapsed(), snap.Retransmissions, sender.Stats().LossRate()*100)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sender: %v\n", err)
		os.Exit(1)
	}
}
