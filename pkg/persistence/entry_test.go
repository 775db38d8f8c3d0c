package persistence

import (
	"errors"
	"testing"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

func TestXorChecksumDeterministic(t *testing.T) {
	data := []byte("hello world")
	if xorChecksum(data) != xorChecksum(data) {
		t.Fatal("checksum must be deterministic")
	}
}

func TestEncodeDecodeBodyRoundTrip(t *testing.T) {
	entry := Entry{
		Kind:   EntryCreateNode,
		Tenant: "t1",
		NodeID: 7,
		Labels: []graph.Label{"Person"},
	}
	body, err := encodeBody(3, entry)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	seq, got, err := decodeBody(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if seq != 3 {
		t.Fatalf("expected sequence 3, got %d", seq)
	}
	if got.Kind != EntryCreateNode || got.Tenant != "t1" || got.NodeID != 7 {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestDecodeBodyDetectsCorruption(t *testing.T) {
	body, err := encodeBody(1, Entry{Kind: EntryCreateNode, Tenant: "t1", NodeID: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Flip a byte inside the entry payload (between the 8-byte sequence
	// prefix and the 4-byte checksum suffix).
	body[10] ^= 0xFF

	_, _, err = decodeBody(body)
	if err == nil {
		t.Fatal("expected corruption error")
	}
	var corrupt *ErrCorruption
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected *ErrCorruption, got %v (%T)", err, err)
	}
	if corrupt.Sequence != 1 {
		t.Fatalf("expected sequence 1 in corruption error, got %d", corrupt.Sequence)
	}
}
