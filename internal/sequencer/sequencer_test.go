package sequencer

import "testing"

func TestReliableOrderedDeliversInOrderDespiteReordering(t *testing.T) {
	s := New()

	delivered, dup := s.ReliableOrdered(1, "a")
	if dup || len(delivered) != 1 || delivered[0] != "a" {
		t.Fatalf("seq 1: delivered=%v dup=%v", delivered, dup)
	}

	// seq 3 arrives before seq 2: buffered, nothing delivered yet.
	delivered, dup = s.ReliableOrdered(3, "c")
	if dup || len(delivered) != 0 {
		t.Fatalf("seq 3 arrived early: delivered=%v dup=%v", delivered, dup)
	}

	// seq 2 arrives: both 2 and the buffered 3 drain in order.
	delivered, dup = s.ReliableOrdered(2, "b")
	if dup {
		t.Fatal("seq 2 incorrectly reported as duplicate")
	}
	if len(delivered) != 2 || delivered[0] != "b" || delivered[1] != "c" {
		t.Fatalf("expected [b c] in order, got %v", delivered)
	}
}

func TestReliableOrderedSuppressesDuplicates(t *testing.T) {
	s := New()

	if _, dup := s.ReliableOrdered(1, "a"); dup {
		t.Fatal("first arrival of seq 1 reported as duplicate")
	}

	delivered, dup := s.ReliableOrdered(1, "a-again")
	if !dup || len(delivered) != 0 {
		t.Fatalf("replayed seq 1 should be a no-op duplicate, got delivered=%v dup=%v", delivered, dup)
	}
}

func TestUnreliableOrderedKeepsOnlyNewest(t *testing.T) {
	s := New()

	if delivered, ok := s.UnreliableOrdered(5, []byte("five")); !ok || string(delivered) != "five" {
		t.Fatalf("seq 5 should deliver: delivered=%s ok=%v", delivered, ok)
	}

	if _, ok := s.UnreliableOrdered(3, []byte("three")); ok {
		t.Fatal("older seq 3 should be discarded after seq 5 was seen")
	}

	if delivered, ok := s.UnreliableOrdered(6, []byte("six")); !ok || string(delivered) != "six" {
		t.Fatalf("seq 6 should deliver: delivered=%s ok=%v", delivered, ok)
	}
}

func TestIsNewReliableDoesNotMutateState(t *testing.T) {
	s := New()
	s.ReliableOrdered(1, "x")

	if !s.IsNewReliable(2) {
		t.Error("seq 2 should be considered new relative to reliableIn=1")
	}
	if s.IsNewReliable(1) {
		t.Error("seq 1 should not be considered new; it was already delivered")
	}
	if s.ReliableIn() != 1 {
		t.Errorf("IsNewReliable must not mutate reliableIn, got %d", s.ReliableIn())
	}
}
