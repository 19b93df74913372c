package lanrudp

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
)

// ServerListing is one entry in a Discoverer's rolling set of observed LAN
// servers (spec.md §4.9).
type ServerListing struct {
	Addr         *net.UDPAddr
	ServerName   string
	MaxClients   int
	CurrentCount int
	LastSeen     time.Time
}

// Discoverer passively listens for ServerInformation beacons and maintains
// a rolling, address-keyed set of servers, independent of any Client
// connection (spec.md §4.9). Grounded on the same destiny-zmq4/zyre/beacon.go
// pattern as Server's heartbeatLoop, here run as the listening half instead
// of the broadcasting half.
type Discoverer struct {
	cfg     Config
	socket  *net.UDPConn
	upcalls *upcallQueue
	log     *logSink

	mu      sync.RWMutex
	servers map[string]ServerListing

	closed   atomic.Bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewDiscoverer binds a UDP socket on cfg.DiscoveryPort and starts
// listening for beacons.
func NewDiscoverer(cfg Config) (*Discoverer, error) {
	socket, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.DiscoveryPort})
	if err != nil {
		return nil, err
	}

	upcalls := newUpcallQueue()

	d := &Discoverer{
		cfg:      cfg,
		socket:   socket,
		upcalls:  upcalls,
		log:      newLogSink(cfg.Debug, upcalls),
		servers:  make(map[string]ServerListing),
		shutdown: make(chan struct{}),
	}

	d.wg.Add(2)
	go d.listenLoop()
	go d.expireLoop()

	return d, nil
}

// Servers returns a snapshot of every server currently considered alive.
func (d *Discoverer) Servers() []ServerListing {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]ServerListing, 0, len(d.servers))
	for _, s := range d.servers {
		out = append(out, s)
	}
	return out
}

// Tick drains every upcall queued since the last Tick.
func (d *Discoverer) Tick(h Upcalls) { d.upcalls.Tick(h) }

// Shutdown stops the discoverer's worker goroutines and closes its socket.
func (d *Discoverer) Shutdown() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	close(d.shutdown)
	d.socket.Close()
	d.wg.Wait()
}

func (d *Discoverer) listenLoop() {
	defer d.wg.Done()

	raw := make([]byte, protocol.DefaultMTU)

	for {
		n, addr, err := d.socket.ReadFromUDP(raw)
		if err != nil {
			select {
			case <-d.shutdown:
				return
			default:
				d.log.errorf("discovery socket read: %v", err)
				return
			}
		}

		kind, body, ok := protocol.DecodeHeader(raw[:n])
		if !ok || kind != protocol.KindServerInformation {
			continue
		}

		pk, err := message.Decode(kind, body)
		if err != nil {
			continue
		}
		info, ok := pk.(*message.ServerInformation)
		if !ok {
			continue
		}

		entry := ServerListing{
			Addr:         addr,
			ServerName:   string(info.ServerName),
			MaxClients:   int(info.MaxClients),
			CurrentCount: int(info.CurrentCount),
			LastSeen:     time.Now(),
		}

		d.mu.Lock()
		d.servers[addr.String()] = entry
		d.mu.Unlock()

		d.upcalls.enqueue(func(h Upcalls) {
			if h.OnServerListChanged != nil {
				h.OnServerListChanged()
			}
		})
	}
}

func (d *Discoverer) expireLoop() {
	defer d.wg.Done()

	interval := d.cfg.ServerDiscoveryTimeout / 2
	if interval <= 0 {
		interval = protocol.DefaultDiscoveryTimeout / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if d.sweep() {
				d.upcalls.enqueue(func(h Upcalls) {
					if h.OnServerListChanged != nil {
						h.OnServerListChanged()
					}
				})
			}
		case <-d.shutdown:
			return
		}
	}
}

func (d *Discoverer) sweep() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	changed := false
	now := time.Now()
	for key, s := range d.servers {
		if now.Sub(s.LastSeen) >= d.cfg.ServerDiscoveryTimeout {
			delete(d.servers, key)
			changed = true
		}
	}
	return changed
}
