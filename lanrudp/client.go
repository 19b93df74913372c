package lanrudp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
)

// handshakeState is the per-address state machine of spec.md §4.6, run here
// from the client's symmetric side.
type handshakeState int32

const (
	stateNone handshakeState = iota
	stateChallenged
	stateConnected
)

// PeerInfo is the display-attribute pair a client learns about another
// connected peer (including the server) via ClientInfo (spec.md §4.6).
type PeerInfo struct {
	Username string
	Color    Color
}

// Client is the transport's client role (spec.md §2): it performs the
// handshake against one server and exchanges data, relayed through it.
// Grounded on the teacher's Connection (raknet/conn.go), which represents
// one side of a single peer-to-peer session; generalized here to carry the
// peer-ID-aware send/receive semantics the server's relay switch expects
// instead of RakNet's flat point-to-point model.
type Client struct {
	cfg      Config
	username string
	color    Color

	socket     *net.UDPConn
	serverAddr *net.UDPAddr

	// server is this client's sole Peer record, reusing the same
	// sequencer/reassembler/retransmitter machinery the server uses per
	// connected peer (spec.md §3).
	server *Peer

	selfID atomic.Uint32
	state  atomic.Int32

	upcalls *upcallQueue
	log     *logSink

	sendCh   chan outboundFrame
	closed   atomic.Bool
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu         sync.RWMutex
	knownPeers map[uint8]PeerInfo
	connectCh  chan error
}

// Connect resolves serverAddr, performs the ConnectionRequest/Challenge/
// Answer/Accept handshake (spec.md §4.6), and returns a connected Client.
// It blocks until the handshake completes, is denied, or cfg's
// server_connection_timeout elapses.
func Connect(serverAddr string, username string, color Color, cfg Config) (*Client, error) {
	if err := validateASCIIName(username); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkLocalInterface(cfg.AllowVirtualIPs); err != nil {
		return nil, err
	}

	addr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, err
	}

	socket, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}

	upcalls := newUpcallQueue()

	c := &Client{
		cfg:        cfg,
		username:   username,
		color:      color,
		socket:     socket,
		serverAddr: addr,
		server:     newPeer(protocol.ServerPeerID, addr, "", Color{}),
		upcalls:    upcalls,
		log:        newLogSink(cfg.Debug, upcalls),
		sendCh:     make(chan outboundFrame, 256),
		shutdown:   make(chan struct{}),
		knownPeers: make(map[uint8]PeerInfo),
		connectCh:  make(chan error, 1),
	}

	c.wg.Add(3)
	go c.listenLoop()
	go c.senderLoop()
	go c.heartbeatLoop()

	c.upcalls.enqueue(func(h Upcalls) {
		if h.OnConnecting != nil {
			h.OnConnecting()
		}
	})
	c.sendStateless(&message.ConnectionRequest{})

	select {
	case err := <-c.connectCh:
		if err != nil {
			c.Shutdown()
			return nil, err
		}
	case <-time.After(cfg.ServerConnectionTimeout):
		c.Shutdown()
		return nil, fmt.Errorf("lanrudp: handshake timed out")
	}

	return c, nil
}

// PeerID returns the ID the server assigned this client, valid once Connect
// has returned.
func (c *Client) PeerID() uint8 { return uint8(c.selfID.Load()) }

// Peers returns a snapshot of every other connected peer's display
// attributes learned via ClientInfo.
func (c *Client) Peers() map[uint8]PeerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[uint8]PeerInfo, len(c.knownPeers))
	for id, info := range c.knownPeers {
		out[id] = info
	}
	return out
}

// Tick drains every upcall queued since the last Tick (spec.md §4.8, §9).
func (c *Client) Tick(h Upcalls) { c.upcalls.Tick(h) }

// Shutdown sends ConnectionClosed, stops every worker goroutine and closes
// the socket (spec.md §5).
func (c *Client) Shutdown() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	if c.state.Load() == int32(stateConnected) {
		// Written directly rather than queued, so it leaves before the
		// sender goroutine stops and the socket closes below.
		closing := &message.ConnectionClosed{}
		if frame, err := protocol.EncodeFrame(closing.Kind(), closing.Write); err == nil {
			c.writeFrame(frame)
		}
	}

	close(c.shutdown)
	c.socket.Close()

	if c.server.retransmit != nil {
		c.server.retransmit.Close()
	}

	c.wg.Wait()
}

func (c *Client) sendStateless(pk message.Packet) {
	select {
	case c.sendCh <- outboundFrame{addr: c.serverAddr, packet: pk}:
	case <-c.shutdown:
	}
}

func (c *Client) sendSequenced(f outboundFrame) {
	select {
	case c.sendCh <- f:
	case <-c.shutdown:
		if f.completion != nil {
			f.completion(false)
		}
	}
}

// SendReliable sends payload reliably and in order to receiver (or
// broadcasts via the server if receiver is nil), chunking it if it exceeds
// the configured MTU (spec.md §6).
func (c *Client) SendReliable(moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	c.applicationSend(protocol.KindReliableData, moduleID, payload, receiver, completion)
}

// SendReliableUnordered sends payload reliably but without ordering
// guarantees.
func (c *Client) SendReliableUnordered(moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	c.applicationSend(protocol.KindReliableUnordered, moduleID, payload, receiver, completion)
}

// SendUnreliable sends payload unreliably; only the most recent sequence
// survives reordering at the receiver. Rejected if it exceeds the MTU.
func (c *Client) SendUnreliable(moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	c.applicationSend(protocol.KindUnreliableData, moduleID, payload, receiver, completion)
}

// SendUnreliableUnordered sends payload unreliably with no ordering at all.
func (c *Client) SendUnreliableUnordered(moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	c.applicationSend(protocol.KindUnreliableUnordered, moduleID, payload, receiver, completion)
}

func (c *Client) applicationSend(kind protocol.Kind, moduleID, payload []byte, receiver *uint8, completion func(bool)) {
	if c.state.Load() != int32(stateConnected) {
		if completion != nil {
			completion(false)
		}
		return
	}

	dest := protocol.BroadcastPeerID
	if receiver != nil {
		dest = *receiver
	}

	c.sendSequenced(outboundFrame{
		peer:          c.server,
		discipline:    kind,
		moduleID:      moduleID,
		payload:       payload,
		senderID:      c.PeerID(),
		destinationID: dest,
		completion:    completion,
	})
}
