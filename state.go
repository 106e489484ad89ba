package bayeux

import (
	"sync"
	"time"
)

// StateRepresentation represents the current composed state of a client as a
// string
type StateRepresentation string

const (
	// StateIdle is a client that has never been started
	StateIdle StateRepresentation = "IDLE"
	// StateHandshaking is a started client without a completed handshake
	StateHandshaking StateRepresentation = "HANDSHAKING"
	// StateConnected is a started, handshaken client with its connect
	// heartbeat loop active
	StateConnected StateRepresentation = "CONNECTED"
	// StateDisconnecting is a stopped client awaiting its disconnect
	// response
	StateDisconnecting StateRepresentation = "DISCONNECTING"
	// StateStopped is a client that was started and later stopped
	StateStopped StateRepresentation = "STOPPED"
	// StateDestroyed is a client that has been permanently destroyed
	StateDestroyed StateRepresentation = "DESTROYED"
)

// sessionState is the set of flags that compose a client's protocol state.
// Fields are only read or written while holding the owning Client's mutex.
//
// See also: https://docs.cometd.org/current/reference/#_client_state_table
type sessionState struct {
	started           bool
	handshaken        bool
	connected         bool
	destroyed         bool
	everStarted       bool
	retryConnectCount int
	connectInterval   time.Duration
}

// representation reduces the flag set to a single name for logging
func (s *sessionState) representation() StateRepresentation {
	switch {
	case s.destroyed:
		return StateDestroyed
	case !s.started && s.connected:
		// Stop was requested and the disconnect response is outstanding
		return StateDisconnecting
	case s.started && s.handshaken:
		return StateConnected
	case s.started:
		return StateHandshaking
	case s.everStarted:
		return StateStopped
	default:
		return StateIdle
	}
}

// clientState tracks the session id token issued by the server on a
// successful handshake. It has its own lock so the MessageSender can be
// used from protocol callbacks without touching the Client's mutex.
type clientState struct {
	clientID string
	lock     sync.RWMutex
}

func (cs *clientState) GetClientID() string {
	cs.lock.RLock()
	defer cs.lock.RUnlock()
	return cs.clientID
}

func (cs *clientState) SetClientID(clientID string) {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	cs.clientID = clientID
}
