package lanrudp

import (
	"sync"
	"testing"
	"time"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AllowVirtualIPs = true
	cfg.ServerConnectionTimeout = 2 * time.Second
	cfg.ServerHeartbeatDelay = 50 * time.Millisecond
	cfg.RTT = 20 * time.Millisecond
	cfg.MaxClients = 4
	return cfg
}

func startTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig()
	s, err := NewServer("test-server", cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

func connectTestClient(t *testing.T, s *Server, username string) *Client {
	t.Helper()
	cfg := testConfig()
	c, err := Connect(s.LocalAddr().String(), username, Color{R: 10}, cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Shutdown)
	return c
}

func TestHandshakeHappyPath(t *testing.T) {
	s := startTestServer(t)
	c := connectTestClient(t, s, "alice")

	if c.PeerID() < protocol.MinPeerID {
		t.Errorf("assigned peer ID %d, want >= %d", c.PeerID(), protocol.MinPeerID)
	}

	deadline := time.Now().Add(time.Second)
	for s.PeerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.PeerCount() != 1 {
		t.Fatalf("server PeerCount() = %d, want 1", s.PeerCount())
	}

	// Mutual ClientInfo: the client should learn the server's own identity
	// through the same introduction path used for peer-to-peer introductions.
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.Tick(Upcalls{})
		if len(c.Peers()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	peers := c.Peers()
	if info, ok := peers[protocol.ServerPeerID]; !ok || info.Username != "test-server" {
		t.Errorf("client never learned server identity via ClientInfo: %+v", peers)
	}
}

func TestHandshakeDeniedAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxClients = 1

	s, err := NewServer("full-server", cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Shutdown)

	connectTestClient(t, s, "first")

	deadline := time.Now().Add(time.Second)
	for s.PeerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	clientCfg := testConfig()
	clientCfg.ServerConnectionTimeout = 500 * time.Millisecond
	_, err = Connect(s.LocalAddr().String(), "second", Color{}, clientCfg)
	if err == nil {
		t.Fatal("expected second connection to be denied once at capacity")
	}
}

func TestMutualIntroductionBetweenTwoPeers(t *testing.T) {
	s := startTestServer(t)
	a := connectTestClient(t, s, "alice")
	b := connectTestClient(t, s, "bob")

	var mu sync.Mutex
	seenByA := make(map[uint8]bool)
	seenByB := make(map[uint8]bool)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a.Tick(Upcalls{OnPeerConnected: func(id uint8) {
			mu.Lock()
			seenByA[id] = true
			mu.Unlock()
		}})
		b.Tick(Upcalls{OnPeerConnected: func(id uint8) {
			mu.Lock()
			seenByB[id] = true
			mu.Unlock()
		}})

		mu.Lock()
		done := seenByA[b.PeerID()] && seenByB[a.PeerID()]
		mu.Unlock()
		if done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("peers never learned about each other: a saw %v, b saw %v (a=%d b=%d)",
		seenByA, seenByB, a.PeerID(), b.PeerID())
}

func TestDuplicateConnectionRequestIsIdempotent(t *testing.T) {
	s := startTestServer(t)
	c := connectTestClient(t, s, "retry-prone")

	before := c.PeerID()

	// A resend of ConnectionRequest from an already-connected address must
	// be answered with the same ConnectionAccepted rather than a second
	// peer slot (handshake.go's idempotent-recovery branch).
	c.sendStateless(&message.ConnectionRequest{})

	time.Sleep(100 * time.Millisecond)

	if s.PeerCount() != 1 {
		t.Errorf("duplicate ConnectionRequest created a second peer slot: count=%d", s.PeerCount())
	}
	if c.PeerID() != before {
		t.Errorf("peer ID changed across a duplicate handshake: %d -> %d", before, c.PeerID())
	}
}
