package lanrudp

import "net"

// checkLocalInterface enforces the two "plausible LAN presence" checks of
// spec.md §6/§9: at least one UP, non-loopback interface with a usable
// address, and — unless allowVirtualIPs is set — a reachable default
// gateway, the signal this transport uses to reject interfaces like a bare
// VPN/virtual adapter with no LAN segment behind it. Both checks use only
// net.Interfaces and a connectionless UDP dial; no routing-table library
// appears anywhere in the retrieved pack (see DESIGN.md).
func checkLocalInterface(allowVirtualIPs bool) error {
	if !hasUsableInterface() {
		return ErrNoUsableInterface
	}

	if allowVirtualIPs {
		return nil
	}

	if !hasDefaultGateway() {
		return ErrNoGateway
	}

	return nil
}

func hasUsableInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
				continue
			}
			return true
		}
	}

	return false
}

// hasDefaultGateway probes for a default route by dialing a connectionless
// UDP socket to an external address and inspecting the local address the
// kernel selects for it, without sending a single packet.
func hasDefaultGateway() bool {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return false
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	return ok && addr.IP != nil && !addr.IP.IsUnspecified() && !addr.IP.IsLoopback()
}
