package lanrudp

import (
	"net"
	"testing"
)

// isLoopback only guards against a frame bouncing back to a server bound to
// a concrete address; NewServer always binds the wildcard address (so the
// guard is a no-op in that case, deliberately, since there's no single local
// IP to compare a source address against). Exercise the comparison directly
// against a fabricated bound address instead of a real ephemeral-wildcard
// socket.
func TestIsLoopbackMatchesOwnBoundAddress(t *testing.T) {
	s := startTestServer(t)
	s.addr = &net.UDPAddr{IP: net.ParseIP("192.168.1.50"), Port: 9000}

	self := &net.UDPAddr{IP: net.ParseIP("192.168.1.50"), Port: 9000}
	if !s.isLoopback(self) {
		t.Error("isLoopback should reject a frame whose source matches the server's own bound address exactly")
	}

	otherPort := &net.UDPAddr{IP: net.ParseIP("192.168.1.50"), Port: 9001}
	if s.isLoopback(otherPort) {
		t.Error("isLoopback should not reject a frame from a different port")
	}

	otherIP := &net.UDPAddr{IP: net.ParseIP("192.168.1.51"), Port: 9000}
	if s.isLoopback(otherIP) {
		t.Error("isLoopback should not reject a frame from a different IP")
	}
}

func TestIsLoopbackNeverTriggersOnWildcardBind(t *testing.T) {
	s := startTestServer(t)

	// NewServer binds the wildcard address; s.addr.IP is unspecified, so the
	// guard must not fire even for a source address identical to the bound
	// port, since there's no concrete local IP to compare against.
	if s.isLoopback(s.addr) {
		t.Error("isLoopback should not fire when the server is bound to the wildcard address")
	}
}
