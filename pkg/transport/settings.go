package transport

import "time"

// Settings bundles the operator-tunable parameters a Sender/Receiver runs
// with, so process configuration (pkg/config) actually reaches the
// protocol instead of every caller referencing the package's default wire
// constants directly.
type Settings struct {
	// Timeout is the retransmission timeout used for data packets and the
	// per-attempt deadline used for handshake/teardown control packets.
	Timeout time.Duration

	// FlowControlWindow caps both the Reno effective window and the
	// receiver's out-of-order buffer, and is advertised in every packet's
	// window_size header field.
	FlowControlWindow int
}

// DefaultSettings returns the spec-mandated constants from packet.go.
func DefaultSettings() Settings {
	return Settings{
		Timeout:           PacketTimeoutMS * time.Millisecond,
		FlowControlWindow: FlowControlWindowSize,
	}
}
