package transport

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := &Packet{
		SeqNum:     42,
		AckNum:     7,
		Flags:      FlagACK,
		WindowSize: FlowControlWindowSize,
		Data:       []byte("hello reliable transfer"),
	}
	p.Checksum = ComputeChecksum(p)

	raw := Encode(p)
	if len(raw) != HeaderSize+len(p.Data) {
		t.Fatalf("encoded length = %d, want %d", len(raw), HeaderSize+len(p.Data))
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SeqNum != p.SeqNum || got.AckNum != p.AckNum || got.Flags != p.Flags {
		t.Fatalf("header mismatch: got %+v, want seq=%d ack=%d flags=%d", got, p.SeqNum, p.AckNum, p.Flags)
	}
	if !bytes.Equal(got.Data, p.Data) {
		t.Fatalf("payload mismatch: got %q, want %q", got.Data, p.Data)
	}
	if !Verify(got) {
		t.Fatal("decoded packet failed checksum verification")
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	p := &Packet{SeqNum: 1, Data: []byte("payload")}
	p.Checksum = ComputeChecksum(p)
	raw := Encode(p)

	raw[HeaderSize] ^= 0xFF // flip a payload byte

	corrupted, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if Verify(corrupted) {
		t.Fatal("Verify should have rejected a corrupted payload")
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected ErrMalformed for a buffer shorter than HeaderSize")
	}
}

func TestDecodeRejectsOverrunDataLen(t *testing.T) {
	p := &Packet{SeqNum: 1, Data: []byte("ab")}
	p.Checksum = ComputeChecksum(p)
	raw := Encode(p)

	if _, err := Decode(raw[:len(raw)-1]); err == nil {
		t.Fatal("expected ErrMalformed when data_len overruns the received buffer")
	}
}

func TestEncodeZeroLengthPayload(t *testing.T) {
	p := &Packet{SeqNum: 5, Flags: FlagFIN}
	p.Checksum = ComputeChecksum(p)
	raw := Encode(p)
	if len(raw) != HeaderSize {
		t.Fatalf("encoded length = %d, want %d for an empty payload", len(raw), HeaderSize)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Data) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got.Data))
	}
	if !Verify(got) {
		t.Fatal("zero-length payload packet failed checksum verification")
	}
}
