package transport

import "testing"

func TestRenoSlowStartGrowsByOnePerNewAck(t *testing.T) {
	r := NewRenoController(FlowControlWindowSize)
	if r.State() != SlowStart {
		t.Fatalf("initial state = %v, want SlowStart", r.State())
	}
	if r.Cwnd() != 1.0 {
		t.Fatalf("initial cwnd = %v, want 1.0", r.Cwnd())
	}

	for i := 0; i < 5; i++ {
		r.OnNewAck()
	}
	if r.Cwnd() != 6.0 {
		t.Fatalf("cwnd after 5 new acks in slow start = %v, want 6.0", r.Cwnd())
	}
	if r.State() != SlowStart {
		t.Fatalf("state after 5 new acks (ssthresh=16) = %v, want SlowStart", r.State())
	}
}

func TestRenoEntersCongestionAvoidanceAtSsthresh(t *testing.T) {
	r := NewRenoController(FlowControlWindowSize)
	for r.Cwnd() < r.Ssthresh() {
		r.OnNewAck()
	}
	if r.State() != CongestionAvoidance {
		t.Fatalf("state after reaching ssthresh = %v, want CongestionAvoidance", r.State())
	}
}

func TestRenoThirdDupAckTriggersFastRetransmit(t *testing.T) {
	r := NewRenoController(FlowControlWindowSize)
	r.OnDupAck(10)
	r.OnDupAck(10)
	retransmit := r.OnDupAck(10)
	if !retransmit {
		t.Fatal("third duplicate ACK should trigger a fast retransmit")
	}
	if r.State() != FastRecovery {
		t.Fatalf("state after 3rd dup ack = %v, want FastRecovery", r.State())
	}
	target, ok := r.DrainFastRetransmit()
	if !ok || target != 10 {
		t.Fatalf("DrainFastRetransmit = (%d, %v), want (10, true)", target, ok)
	}
	if _, ok := r.DrainFastRetransmit(); ok {
		t.Fatal("DrainFastRetransmit should return false once drained")
	}
}

func TestRenoFastRecoveryInflatesThenDeflatesOnNewAck(t *testing.T) {
	r := NewRenoController(FlowControlWindowSize)
	r.cwnd = 20
	r.OnDupAck(0)
	r.OnDupAck(0)
	r.OnDupAck(0)
	inflated := r.Cwnd()
	if r.State() != FastRecovery {
		t.Fatalf("expected FastRecovery after 3rd dup ack, got %v", r.State())
	}

	r.OnDupAck(0) // a 4th dup ack while in fast recovery inflates further
	if r.Cwnd() <= inflated {
		t.Fatalf("cwnd should inflate on dup acks within fast recovery: got %v, had %v", r.Cwnd(), inflated)
	}

	r.OnNewAck() // the ack that ends fast recovery
	if r.State() != CongestionAvoidance {
		t.Fatalf("state after new ack exits fast recovery = %v, want CongestionAvoidance", r.State())
	}
	if r.Cwnd() != r.Ssthresh() {
		t.Fatalf("cwnd on fast recovery exit = %v, want ssthresh %v", r.Cwnd(), r.Ssthresh())
	}
}

func TestRenoTimeoutResetsToSlowStart(t *testing.T) {
	r := NewRenoController(FlowControlWindowSize)
	r.cwnd = 20
	r.OnTimeout()
	if r.State() != SlowStart {
		t.Fatalf("state after timeout = %v, want SlowStart", r.State())
	}
	if r.Cwnd() != minCwnd {
		t.Fatalf("cwnd after timeout = %v, want %v", r.Cwnd(), minCwnd)
	}
	if r.Ssthresh() != 10 {
		t.Fatalf("ssthresh after timeout from cwnd=20 = %v, want 10", r.Ssthresh())
	}
}

func TestRenoEffectiveWindowCapsAtFlowControlWindow(t *testing.T) {
	r := NewRenoController(FlowControlWindowSize)
	r.cwnd = float64(FlowControlWindowSize) + 50
	if w := r.EffectiveWindow(); w != FlowControlWindowSize {
		t.Fatalf("EffectiveWindow = %d, want %d", w, FlowControlWindowSize)
	}
}
