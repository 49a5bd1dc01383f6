package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"reliable-transfer-go/pkg/config"
	"reliable-transfer-go/pkg/logger"
	"reliable-transfer-go/pkg/metrics"
	"reliable-transfer-go/pkg/transport"
)

func run() error {
	addr := flag.String("addr", "", "local host:port to listen on (overrides config host/port)")
	out := flag.String("out", "", "path to write the received file to")
	configPath := flag.String("config", config.DefaultFilename, "path to transfer.yml")
	metricsAddr := flag.String("metrics-addr", "", "address for the /metrics endpoint (overrides config, empty disables)")
	logLevel := flag.String("log-level", "", "debug|info|warn|error (overrides config)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `receiver - accept one file transfer over the reliable transfer protocol

USAGE:
  receiver -out path [flags]

FLAGS:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing -out")
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

	logger.Banner("reliable-transfer-go receiver", "1.0.0")

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	laddr, err := net.ResolveUDPAddr("udp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("resolve %s: %w", cfg.Addr(), err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}
	defer conn.Close()

	logger.Section("waiting for connection")
	logger.InfoCyan("listening on %s", cfg.Addr())

	receiver, err := transport.Accept(conn, cfg.TransportSettings())
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}

	if cfg.MetricsAddr != "" {
		errc := make(chan error, 1)
		metrics.Serve(cfg.MetricsAddr, metrics.NewCollector(receiver.Stats(), nil), errc)
		logger.Info("metrics listening on %s", cfg.MetricsAddr)
	}

	logger.Section("receiving")
	if err := receiver.Serve(f); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	snap := receiver.Stats().Snapshot()
	logger.Info("received %d bytes in %s, %d out-of-order, %d duplicate",
		snap.BytesTransferred, receiver.Stats().Elapsed(), snap.OutOfOrderPackets, snap.DuplicatePackets)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "receiver: %v\n", err)
		os.Exit(1)
	}
}
