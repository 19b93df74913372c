package lanrudp

import (
	"sync"
	"testing"
	"time"
)

// TestUnresponsivePeerIsEvictedAfterRetryBudget exercises spec.md §4.5's
// bound: a reliable send to a peer that stops acknowledging is retried
// max_resend_reliable_packets times before the peer is evicted and
// on_peer_disconnected fires.
func TestUnresponsivePeerIsEvictedAfterRetryBudget(t *testing.T) {
	cfg := testConfig()
	cfg.RTT = 10 * time.Millisecond
	cfg.MaxResendReliablePackets = 3

	s, err := NewServer("flaky-server", cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Shutdown)

	clientCfg := testConfig()
	c, err := Connect(s.LocalAddr().String(), "disappearing", Color{}, clientCfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for s.PeerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.PeerCount() != 1 {
		t.Fatalf("PeerCount() = %d, want 1 before simulating a network partition", s.PeerCount())
	}

	peerID := c.PeerID()

	// Simulate the client vanishing without a ConnectionClosed: close its
	// socket directly instead of calling Shutdown, so the server gets no
	// notice and must discover the loss only through exhausted retransmits.
	c.socket.Close()

	s.SendReliable([]byte("ping"), []byte("are you there"), &peerID, nil)

	var mu sync.Mutex
	evicted := false

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.Tick(Upcalls{OnPeerDisconnected: func(id uint8) {
			mu.Lock()
			if id == peerID {
				evicted = true
			}
			mu.Unlock()
		}})

		mu.Lock()
		done := evicted
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if !evicted {
		t.Fatalf("peer %d was never evicted after its retransmit budget was exhausted; PeerCount()=%d", peerID, s.PeerCount())
	}
	if s.PeerCount() != 0 {
		t.Errorf("PeerCount() = %d after eviction, want 0", s.PeerCount())
	}
}
