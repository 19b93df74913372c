package sequencer

import (
	"sync"
	"testing"
	"time"
)

func TestRetransmitterResendsUntilAcked(t *testing.T) {
	var mu sync.Mutex
	var sends int

	r := NewRetransmitter(5*time.Millisecond, 10, func(frame []byte) {
		mu.Lock()
		sends++
		mu.Unlock()
	}, func() {
		t.Error("onExhausted should not fire once the entry is acked")
	})
	defer r.Close()

	key := Key{Sequence: 1}
	r.Arm(key, []byte("payload"))

	time.Sleep(30 * time.Millisecond)
	r.Ack(key)

	mu.Lock()
	seenBeforeAck := sends
	mu.Unlock()

	if seenBeforeAck == 0 {
		t.Fatal("expected at least one resend before the ack")
	}

	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	seenAfterAck := sends
	mu.Unlock()

	if seenAfterAck != seenBeforeAck {
		t.Errorf("resends continued after Ack: before=%d after=%d", seenBeforeAck, seenAfterAck)
	}
}

func TestRetransmitterExhaustionEvicts(t *testing.T) {
	exhausted := make(chan struct{}, 1)

	r := NewRetransmitter(2*time.Millisecond, 2, func(frame []byte) {}, func() {
		exhausted <- struct{}{}
	})
	defer r.Close()

	r.Arm(Key{Sequence: 1}, []byte("payload"))

	select {
	case <-exhausted:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("onExhausted never fired after exceeding maxRetries")
	}
}

func TestRetransmitterCloseStopsFurtherSends(t *testing.T) {
	var mu sync.Mutex
	var sends int

	r := NewRetransmitter(3*time.Millisecond, 50, func(frame []byte) {
		mu.Lock()
		sends++
		mu.Unlock()
	}, func() {})

	r.Arm(Key{Sequence: 1}, []byte("payload"))
	time.Sleep(10 * time.Millisecond)
	r.Close()

	mu.Lock()
	seenAtClose := sends
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	seenAfterClose := sends
	mu.Unlock()

	if seenAfterClose != seenAtClose {
		t.Errorf("sends continued after Close: at close=%d after=%d", seenAtClose, seenAfterClose)
	}
}
