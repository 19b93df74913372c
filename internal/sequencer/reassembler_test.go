package sequencer

import (
	"bytes"
	"testing"
)

func TestReassemblerCompletesOnLastSlice(t *testing.T) {
	r := NewReassembler()

	if _, complete := r.Receive(10, 0, 3, []byte("foo")); complete {
		t.Fatal("reassembly reported complete after only 1 of 3 slices")
	}
	if _, complete := r.Receive(10, 2, 3, []byte("baz")); complete {
		t.Fatal("reassembly reported complete after only 2 of 3 slices, arriving out of order")
	}

	payload, complete := r.Receive(10, 1, 3, []byte("bar"))
	if !complete {
		t.Fatal("reassembly should complete once every slice index has arrived")
	}
	if !bytes.Equal(payload, []byte("foobarbaz")) {
		t.Errorf("payload = %q, want %q", payload, "foobarbaz")
	}
}

func TestReassemblerForgetsCompletedSequence(t *testing.T) {
	r := NewReassembler()

	r.Receive(1, 0, 1, []byte("once"))

	// A second arrival of the same sequence starts a fresh set rather than
	// re-triggering completion from stale state.
	if _, complete := r.Receive(1, 0, 1, []byte("twice")); !complete {
		t.Fatal("single-slice message should complete immediately")
	}
}

func TestReassemblerTracksIndependentSequences(t *testing.T) {
	r := NewReassembler()

	r.Receive(1, 0, 2, []byte("a"))
	r.Receive(2, 0, 2, []byte("x"))

	payload1, complete1 := r.Receive(1, 1, 2, []byte("b"))
	if !complete1 || !bytes.Equal(payload1, []byte("ab")) {
		t.Fatalf("sequence 1: payload=%q complete=%v", payload1, complete1)
	}

	payload2, complete2 := r.Receive(2, 1, 2, []byte("y"))
	if !complete2 || !bytes.Equal(payload2, []byte("xy")) {
		t.Fatalf("sequence 2: payload=%q complete=%v", payload2, complete2)
	}
}
