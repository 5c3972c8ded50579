package session

import (
	"errors"
	"fmt"
)

// State is the protocol session state. It is owned exclusively by Session
// and mutated only through its transition function.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateDiscoveringServices
	StateConfiguring
	StateStreaming
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateDiscoveringServices:
		return "discovering_services"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the session has ended; terminal states admit no
// further transitions except disconnect bookkeeping.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateFailed
}

// validTransitions is the full transition table. Disconnect is legal from
// any state and handled separately; this table covers everything else.
var validTransitions = map[State][]State{
	StateIdle:                {StateScanning, StateConnecting},
	StateScanning:            {StateIdle, StateConnecting},
	StateConnecting:          {StateDiscoveringServices, StateFailed},
	StateDiscoveringServices: {StateConfiguring, StateFailed},
	StateConfiguring:         {StateStreaming, StateFailed},
	StateStreaming:           {},
	StateDisconnected:        {},
	StateFailed:              {},
}

// ValidTransition reports whether the session may move from one state to
// another. Every state may move to Disconnected.
func ValidTransition(from, to State) bool {
	if to == StateDisconnected {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateChange is one observed transition, delivered through Events.
type StateChange struct {
	From State
	To   State
	// Err carries the terminal *SessionError when To == StateFailed.
	Err error
}

// FailureReason classifies why a session reached StateFailed.
type FailureReason string

const (
	// ReasonConnect: the transport link could not be established.
	ReasonConnect FailureReason = "connect_error"
	// ReasonProtocolMismatch: a required PMD characteristic is absent.
	ReasonProtocolMismatch FailureReason = "protocol_mismatch"
	// ReasonConfig: a control point write was rejected or unacknowledged.
	ReasonConfig FailureReason = "config_error"
)

// SessionError is the terminal failure surfaced to the caller.
type SessionError struct {
	Reason FailureReason
	Err    error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Is allows errors.Is to match SessionError values by Reason.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

var (
	// ErrNotIdle is returned by Connect when the session has already been
	// used; sessions are single-shot.
	ErrNotIdle = errors.New("session is not idle")
	// ErrNotConnected is returned by operations that need an established
	// link.
	ErrNotConnected = errors.New("not connected")
	// ErrNotStreaming is returned by StartHeartRate outside Streaming.
	ErrNotStreaming = errors.New("session is not streaming")
	// ErrDisconnected is returned by Connect when Disconnect tears the
	// session down while negotiation is still in flight.
	ErrDisconnected = errors.New("session disconnected during connect")
	// ErrCharacteristicMissing marks a required GATT characteristic absent
	// from the discovered profile.
	ErrCharacteristicMissing = errors.New("required characteristic missing")
)
