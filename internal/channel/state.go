package channel

import "fmt"

// State represents the connection state of a channel connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateReconnecting
	StateClosed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// stateTransition represents a state transition.
type stateTransition struct {
	from State
	to   State
}

// validTransitions defines all allowed state transitions.
// Closed is terminal and only reachable via Close().
var validTransitions = map[stateTransition]bool{
	// From Disconnected
	{StateDisconnected, StateConnecting}: true,
	{StateDisconnected, StateClosed}:     true,

	// From Connecting
	{StateConnecting, StateSubscribed}:   true,
	{StateConnecting, StateReconnecting}: true,
	{StateConnecting, StateDisconnected}: true,
	{StateConnecting, StateClosed}:       true,

	// From Subscribed
	{StateSubscribed, StateReconnecting}: true,
	{StateSubscribed, StateClosed}:       true,

	// From Reconnecting
	{StateReconnecting, StateConnecting}: true,
	{StateReconnecting, StateClosed}:     true,
}
