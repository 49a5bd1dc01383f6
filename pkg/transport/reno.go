package transport

// RenoState is one of the three TCP Reno congestion-control states.
type RenoState int

const (
	SlowStart RenoState = iota
	CongestionAvoidance
	FastRecovery
)

func (s RenoState) String() string {
	switch s {
	case SlowStart:
		return "slow-start"
	case CongestionAvoidance:
		return "congestion-avoidance"
	case FastRecovery:
		return "fast-recovery"
	default:
		return "unknown"
	}
}

const (
	initialCwnd     = 1.0
	initialSsthresh = 16
	minCwnd         = 1.0
	minSsthresh     = 2.0
)

// RenoController owns cwnd, ssthresh, the Reno state, and the duplicate-ACK
// counter. It is not safe for concurrent use on its own; callers embed it
// in a larger mutex-protected aggregate (see Sender).
type RenoController struct {
	cwnd        float64
	ssthresh    float64
	state       RenoState
	dupAckCount uint32

	// flowControlWindow is the configured cap EffectiveWindow never exceeds
	// regardless of cwnd, normally Settings.FlowControlWindow.
	flowControlWindow int

	// fastRetransmitTarget, when non-nil, names the sequence number the
	// sender's main step should retransmit immediately, bypassing the
	// timeout scan. Cleared once drained.
	fastRetransmitTarget *uint32
}

// NewRenoController returns a controller at its spec-mandated initial
// values: cwnd=1, ssthresh=16, state=SlowStart, dup_ack_count=0, capped at
// flowControlWindow.
func NewRenoController(flowControlWindow int) *RenoController {
	return &RenoController{
		cwnd:              initialCwnd,
		ssthresh:          initialSsthresh,
		state:             SlowStart,
		flowControlWindow: flowControlWindow,
	}
}

// EffectiveWindow returns min(flowControlWindow, floor(cwnd)).
func (r *RenoController) EffectiveWindow() int {
	w := int(r.cwnd)
	if w > r.flowControlWindow {
		w = r.flowControlWindow
	}
	if w < 1 {
		w = 1
	}
	return w
}

func (r *RenoController) Cwnd() float64     { return r.cwnd }
func (r *RenoController) Ssthresh() float64 { return r.ssthresh }
func (r *RenoController) State() RenoState  { return r.state }
func (r *RenoController) DupAcks() uint32   { return r.dupAckCount }

// OnNewAck handles a cumulative ACK with ack_num >= send_base. Window
// pruning and send_base advancement are the caller's responsibility (see
// Sender.handleAck); this only updates Reno state.
func (r *RenoController) OnNewAck() {
	r.dupAckCount = 0

	switch r.state {
	case FastRecovery:
		r.state = CongestionAvoidance
		r.cwnd = r.ssthresh
	case SlowStart:
		r.cwnd += 1.0
		if r.cwnd >= r.ssthresh {
			r.state = CongestionAvoidance
		}
	case CongestionAvoidance:
		r.cwnd += 1.0 / r.cwnd
	}
}

// OnDupAck handles a duplicate cumulative ACK (ack_num < send_base). When
// the third duplicate arrives outside fast recovery, it enters fast
// recovery, records sendBase as the fast-retransmit target returned by
// DrainFastRetransmit, and returns true; otherwise it returns false. The
// caller passes sendBase in, since the controller itself does not track
// send_base.
func (r *RenoController) OnDupAck(sendBase uint32) (retransmit bool) {
	r.dupAckCount++

	switch {
	case r.state == FastRecovery:
		r.cwnd += 1.0
	case r.dupAckCount == 3:
		r.state = FastRecovery
		r.ssthresh = maxF(minSsthresh, r.cwnd/2.0)
		r.cwnd = r.ssthresh + 3.0
		r.fastRetransmitTarget = &sendBase
		return true
	}
	return false
}

// OnTimeout handles a retransmission timeout on any in-flight packet.
func (r *RenoController) OnTimeout() {
	r.ssthresh = maxF(minSsthresh, r.cwnd/2.0)
	r.cwnd = minCwnd
	r.state = SlowStart
	r.dupAckCount = 0
}

// DrainFastRetransmit returns and clears the pending fast-retransmit
// target, if any.
func (r *RenoController) DrainFastRetransmit() (uint32, bool) {
	if r.fastRetransmitTarget == nil {
		return 0, false
	}
	target := *r.fastRetransmitTarget
	r.fastRetransmitTarget = nil
	return target, true
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
