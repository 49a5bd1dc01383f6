// Package metrics exposes a transfer's live TransferStats (and, on the
// sender side, its Reno congestion state) as a prometheus.Collector,
// following the Describe/Collect shape used by this pack's own socket
// exporters.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reliable-transfer-go/pkg/transport"
)

var (
	packetsSentDesc       = prometheus.NewDesc("transfer_packets_sent_total", "Data packets sent.", []string{"connection_id"}, nil)
	packetsReceivedDesc   = prometheus.NewDesc("transfer_packets_received_total", "Data packets received.", []string{"connection_id"}, nil)
	retransmissionsDesc   = prometheus.NewDesc("transfer_retransmissions_total", "Packets retransmitted.", []string{"connection_id"}, nil)
	acksReceivedDesc      = prometheus.NewDesc("transfer_acks_received_total", "ACKs received.", []string{"connection_id"}, nil)
	outOfOrderDesc        = prometheus.NewDesc("transfer_out_of_order_packets_total", "Out-of-order data packets buffered.", []string{"connection_id"}, nil)
	duplicateDesc         = prometheus.NewDesc("transfer_duplicate_packets_total", "Duplicate data packets discarded.", []string{"connection_id"}, nil)
	bytesTransferredDesc  = prometheus.NewDesc("transfer_bytes_transferred_total", "Payload bytes delivered.", []string{"connection_id"}, nil)
	elapsedSecondsDesc    = prometheus.NewDesc("transfer_elapsed_seconds", "Time since transfer start.", []string{"connection_id"}, nil)
	cwndDesc              = prometheus.NewDesc("transfer_congestion_window", "Current Reno congestion window (packets).", []string{"connection_id"}, nil)
	ssthreshDesc           = prometheus.NewDesc("transfer_ssthresh", "Current Reno slow-start threshold.", []string{"connection_id"}, nil)
	inFlightDesc          = prometheus.NewDesc("transfer_in_flight_packets", "Unacknowledged packets currently in the send window.", []string{"connection_id"}, nil)
	renoStateDesc         = prometheus.NewDesc("transfer_reno_state", "Current Reno state (a single series with value 1, labelled with the active state).", []string{"connection_id", "state"}, nil)
)

// congestionSource is satisfied by *transport.Sender; kept as an interface
// so the collector does not force a sender dependency on the receiver CLI.
type congestionSource interface {
	Congestion() transport.CongestionSnapshot
}

// Collector reports one transfer's TransferStats, and its congestion state
// when attached to a sender.
type Collector struct {
	mu     sync.Mutex
	stats  *transport.TransferStats
	source congestionSource
}

// NewCollector builds a Collector over stats. source may be nil (receiver
// side, which has no congestion window to report).
func NewCollector(stats *transport.TransferStats, source congestionSource) *Collector {
	return &Collector{stats: stats, source: source}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- packetsSentDesc
	descs <- packetsReceivedDesc
	descs <- retransmissionsDesc
	descs <- acksReceivedDesc
	descs <- outOfOrderDesc
	descs <- duplicateDesc
	descs <- bytesTransferredDesc
	descs <- elapsedSecondsDesc
	descs <- cwndDesc
	descs <- ssthreshDesc
	descs <- inFlightDesc
	descs <- renoStateDesc
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.stats.Snapshot()
	id := snap.ConnectionID

	metrics <- prometheus.MustNewConstMetric(packetsSentDesc, prometheus.CounterValue, float64(snap.PacketsSent), id)
	metrics <- prometheus.MustNewConstMetric(packetsReceivedDesc, prometheus.CounterValue, float64(snap.PacketsReceived), id)
	metrics <- prometheus.MustNewConstMetric(retransmissionsDesc, prometheus.CounterValue, float64(snap.Retransmissions), id)
	metrics <- prometheus.MustNewConstMetric(acksReceivedDesc, prometheus.CounterValue, float64(snap.AcksReceived), id)
	metrics <- prometheus.MustNewConstMetric(outOfOrderDesc, prometheus.CounterValue, float64(snap.OutOfOrderPackets), id)
	metrics <- prometheus.MustNewConstMetric(duplicateDesc, prometheus.CounterValue, float64(snap.DuplicatePackets), id)
	metrics <- prometheus.MustNewConstMetric(bytesTransferredDesc, prometheus.CounterValue, float64(snap.BytesTransferred), id)
	metrics <- prometheus.MustNewConstMetric(elapsedSecondsDesc, prometheus.GaugeValue, c.stats.Elapsed().Seconds(), id)

	if c.source == nil {
		return
	}
	cong := c.source.Congestion()
	metrics <- prometheus.MustNewConstMetric(cwndDesc, prometheus.GaugeValue, cong.Cwnd, id)
	metrics <- prometheus.MustNewConstMetric(ssthreshDesc, prometheus.GaugeValue, cong.Ssthresh, id)
	metrics <- prometheus.MustNewConstMetric(inFlightDesc, prometheus.GaugeValue, float64(cong.InFlight), id)
	metrics <- prometheus.MustNewConstMetric(renoStateDesc, prometheus.GaugeValue, 1, id, cong.State)
}

// Serve registers c against a fresh registry and starts an HTTP /metrics
// endpoint on addr in its own goroutine. It returns immediately; errors
// from the listener are delivered to errc.
func Serve(addr string, c *Collector, errc chan<- error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		errc <- http.ListenAndServe(addr, mux)
	}()
}
