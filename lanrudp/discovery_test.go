package lanrudp

import (
	"sync"
	"testing"
	"time"
)

func TestDiscovererObservesBeaconsWithinHeartbeatInterval(t *testing.T) {
	discoveryPort := 48765

	serverCfg := testConfig()
	serverCfg.DiscoveryPort = discoveryPort
	serverCfg.ServerHeartbeatDelay = 30 * time.Millisecond

	s, err := NewServer("beacon-server", serverCfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Shutdown)

	discovererCfg := testConfig()
	discovererCfg.DiscoveryPort = discoveryPort
	discovererCfg.ServerDiscoveryTimeout = 2 * time.Second

	d, err := NewDiscoverer(discovererCfg)
	if err != nil {
		t.Fatalf("NewDiscoverer: %v", err)
	}
	t.Cleanup(d.Shutdown)

	var mu sync.Mutex
	changed := false

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.Tick(Upcalls{OnServerListChanged: func() {
			mu.Lock()
			changed = true
			mu.Unlock()
		}})

		mu.Lock()
		seen := changed
		mu.Unlock()
		if seen && len(d.Servers()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	listings := d.Servers()
	if len(listings) != 1 {
		t.Fatalf("Servers() = %v, want exactly one listing", listings)
	}
	if listings[0].ServerName != "beacon-server" {
		t.Errorf("ServerName = %q, want %q", listings[0].ServerName, "beacon-server")
	}
}
