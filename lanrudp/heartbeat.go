package lanrudp

import (
	"time"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
)

// heartbeatLoop broadcasts a ServerInformation beacon every
// server_heartbeat_delay and sweeps the peer table for anyone quiet longer
// than server_connection_timeout (spec.md §4.8 "heartbeat"). Grounded on
// the pack's beacon.go (destiny-zmq4/zyre), which ticks a periodic
// broadcastLoop on a dedicated UDP socket; generalized here to also carry
// this spec's ServerInformation payload and fold in the same-interval
// timeout sweep, since this transport has no separate keepalive frame.
func (s *Server) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ServerHeartbeatDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.broadcastServerInformation()
			s.sweepTimeouts()
		case <-s.shutdown:
			return
		}
	}
}

func (s *Server) broadcastServerInformation() {
	info := &message.ServerInformation{
		ServerName:   []byte(s.serverName),
		MaxClients:   uint16(s.cfg.MaxClients),
		CurrentCount: uint16(s.session.Count() + 1),
	}

	frame, err := protocol.EncodeFrame(info.Kind(), info.Write)
	if err != nil {
		s.log.errorf("encode ServerInformation: %v", err)
		return
	}

	if _, err := s.discoverySocket.WriteToUDP(frame, s.broadcastAddr); err != nil {
		s.session.socketErrors.Add(1)
		s.log.warnf("beacon broadcast: %v", err)
	}
}

func (s *Server) sweepTimeouts() {
	deadline := s.cfg.ServerConnectionTimeout
	now := time.Now()

	for _, p := range s.session.allPeers() {
		if now.Sub(p.LastHeard()) >= deadline {
			s.evictPeer(p, "timeout")
		}
	}
}
