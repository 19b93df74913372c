package lanrudp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
	"github.com/gamevidea/lanrudp/internal/sequencer"
)

// Server is the transport's server role (spec.md §2): it accepts peers,
// relays traffic between them, and broadcasts discovery beacons. Grounded
// on the teacher's Listener (raknet/listener.go), generalized from a single
// UDP socket accepting 1:1 RakNet connections into a peer table with ID
// allocation and three-way relay (spec.md §4.7).
type Server struct {
	cfg        Config
	serverName string

	socket *net.UDPConn
	addr   *net.UDPAddr

	discoverySocket *net.UDPConn
	broadcastAddr   *net.UDPAddr

	session *session
	upcalls *upcallQueue
	log     *logSink

	sendCh chan outboundFrame

	closed   atomic.Bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// outboundFrame is one unit of work handed to the sender goroutine
// (spec.md §4.8). Exactly one of the three shapes below is populated:
// a stateless control packet addressed directly, a sequenced application
// send destined for an established Peer, or a sequenced ClientInfo send.
type outboundFrame struct {
	// Stateless control frame (handshake/session/discovery/ACK packets).
	addr   *net.UDPAddr
	packet message.Packet

	// Sequenced application-facing send.
	peer          *Peer
	discipline    protocol.Kind
	moduleID      []byte
	payload       []byte
	destinationID uint8
	senderID      uint8
	completion    func(bool)

	// Sequenced ClientInfo send (spec.md §4.6 "mutual ClientInfo"); shares
	// peer's reliable-ordered channel but carries no application moduleID.
	clientInfo *message.ClientInfo
}

// NewServer binds a UDP socket on cfg.Port and starts the listener, sender
// and heartbeat goroutines. serverName is advertised in the discovery
// beacon and must satisfy the same ASCII/length rule as a username.
func NewServer(serverName string, cfg Config) (*Server, error) {
	if err := validateASCIIName(serverName); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkLocalInterface(cfg.AllowVirtualIPs); err != nil {
		return nil, err
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, err
	}

	socket, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	// Re-read the bound address: when cfg.Port is 0, the kernel assigns an
	// ephemeral port that addr (resolved before binding) doesn't know about.
	boundAddr, ok := socket.LocalAddr().(*net.UDPAddr)
	if !ok {
		socket.Close()
		return nil, fmt.Errorf("lanrudp: unexpected local address type %T", socket.LocalAddr())
	}

	discoverySocket, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		socket.Close()
		return nil, err
	}

	upcalls := newUpcallQueue()

	s := &Server{
		cfg:             cfg,
		serverName:      serverName,
		socket:          socket,
		addr:            boundAddr,
		discoverySocket: discoverySocket,
		broadcastAddr:   &net.UDPAddr{IP: net.IPv4bcast, Port: cfg.DiscoveryPort},
		session:         newSession(cfg.MaxClients),
		upcalls:         upcalls,
		log:             newLogSink(cfg.Debug, upcalls),
		sendCh:          make(chan outboundFrame, 256),
		shutdown:        make(chan struct{}),
	}

	s.wg.Add(3)
	go s.listenLoop()
	go s.senderLoop()
	go s.heartbeatLoop()

	return s, nil
}

// LocalAddr returns the address the server's data socket is bound to.
func (s *Server) LocalAddr() *net.UDPAddr { return s.addr }

// Stats reports the malformed-frame and socket-error counters.
func (s *Server) Stats() Stats { return s.session.stats() }

// PeerCount returns the number of currently connected peers.
func (s *Server) PeerCount() int { return s.session.Count() }

// Tick drains every upcall queued since the last Tick and invokes the
// matching callback in h on the calling goroutine (spec.md §4.8, §9).
func (s *Server) Tick(h Upcalls) { s.upcalls.Tick(h) }

// Shutdown sets the cooperative shutdown flag, closes the socket to unblock
// the listener, and stops every worker goroutine (spec.md §5).
func (s *Server) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.shutdown)
	s.socket.Close()
	s.discoverySocket.Close()

	for _, p := range s.session.allPeers() {
		if p.retransmit != nil {
			p.retransmit.Close()
		}
	}

	s.wg.Wait()
}

func retransmitterFor(cfg Config, send func([]byte), onExhausted func()) *sequencer.Retransmitter {
	return sequencer.NewRetransmitter(cfg.RTT, cfg.MaxResendReliablePackets, send, onExhausted)
}

// send enqueues a stateless control packet addressed directly (no peer
// lookup, no sequence number): ConnectionChallenge, ConnectionDenied,
// ConnectionAccepted, ClientDisconnected and ACK all travel this path.
// ServerInformation beacons go out on the discovery socket instead
// (heartbeat.go).
func (s *Server) send(addr *net.UDPAddr, pk message.Packet) {
	select {
	case s.sendCh <- outboundFrame{addr: addr, packet: pk}:
	case <-s.shutdown:
	}
}

// sendSequenced enqueues an application-facing or ClientInfo send destined
// for an established peer, to be assigned the next outbound sequence number
// by the sender goroutine.
func (s *Server) sendSequenced(f outboundFrame) {
	select {
	case s.sendCh <- f:
	case <-s.shutdown:
		if f.completion != nil {
			f.completion(false)
		}
	}
}

// SendReliable sends payload reliably and in order to receiver (or
// broadcasts if receiver is nil), chunking it if it exceeds the configured
// MTU (spec.md §6 "Send API").
func (s *Server) SendReliable(moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	s.applicationSend(protocol.KindReliableData, moduleID, payload, receiver, completion)
}

// SendReliableUnordered sends payload reliably but without ordering
// guarantees, chunking it if it exceeds the configured MTU.
func (s *Server) SendReliableUnordered(moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	s.applicationSend(protocol.KindReliableUnordered, moduleID, payload, receiver, completion)
}

// SendUnreliable sends payload unreliably; only the most recent sequence
// survives reordering at the receiver. Rejected if it exceeds the MTU.
func (s *Server) SendUnreliable(moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	s.applicationSend(protocol.KindUnreliableData, moduleID, payload, receiver, completion)
}

// SendUnreliableUnordered sends payload unreliably with no ordering at all.
// Rejected if it exceeds the MTU.
func (s *Server) SendUnreliableUnordered(moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	s.applicationSend(protocol.KindUnreliableUnordered, moduleID, payload, receiver, completion)
}

func (s *Server) applicationSend(kind protocol.Kind, moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	dest := protocol.BroadcastPeerID
	if receiver != nil {
		dest = *receiver
	}

	s.relaySend(protocol.ServerPeerID, dest, kind, moduleID, payload, completion)
}
