package lanrudp

import "errors"

// Sentinel errors for the failure modes named in spec.md §7. Grounded on
// the teacher's raknet/errors.go (DPL_ERROR, IFD_ERROR, ...), generalized
// from RakNet's wire-parsing-only error set to also name the
// handshake/session/application-facing failures this spec defines.
var (
	// ErrCapacityExceeded is returned by Config.Validate for a max_clients
	// outside [1, protocol.MaxPeers], and internally when a ChallengeAnswer
	// arrives while the peer table is already at max_clients (the server then
	// replies with ConnectionDenied).
	ErrCapacityExceeded = errors.New("lanrudp: peer capacity exceeded")

	// ErrChallengeMismatch names a ChallengeAnswer whose hash does not match
	// the nonce issued for that address. The server answers that case with
	// ConnectionDenied; no function in this package returns this value.
	ErrChallengeMismatch = errors.New("lanrudp: challenge hash mismatch")

	// ErrUnknownReceiver names an application send to a destination peer ID
	// with no matching peer. The send API reports that case by calling the
	// completion callback with false; no function returns this value.
	ErrUnknownReceiver = errors.New("lanrudp: unknown receiver")

	// ErrSessionClosed names a send issued after Shutdown. No function in
	// this package returns this value.
	ErrSessionClosed = errors.New("lanrudp: session is closed")

	// ErrOversizedPayload names an unreliable send that exceeds the
	// configured MTU; unlike reliable sends, unreliable payloads are never
	// chunked (spec.md §6, §7). The sender drops such a send and calls its
	// completion callback with false; no function returns this value.
	ErrOversizedPayload = errors.New("lanrudp: payload exceeds mtu for an unreliable send")

	// ErrInvalidUsername is returned when a configured username or
	// servername is empty, exceeds 100 bytes, or contains non-ASCII bytes.
	ErrInvalidUsername = errors.New("lanrudp: username must be non-empty, ASCII and at most 100 bytes")

	// ErrNoGateway is returned at session start when allow_virtual_ips is
	// false and the local interface has no default gateway.
	ErrNoGateway = errors.New("lanrudp: local interface has no default gateway")

	// ErrNoUsableInterface is returned at session start when no UP-state
	// network interface with a usable local address can be found.
	ErrNoUsableInterface = errors.New("lanrudp: no up-state network interface found")
)
